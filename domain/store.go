package domain

type Store struct {
	ID            int64  `db:"store_id" json:"store_id"`
	Name          string `db:"store_name" json:"store_name"`
	Address       string `db:"store_address" json:"store_address"`
	Person        string `db:"store_person" json:"store_person"`
	PersonContact string `db:"store_person_contact" json:"store_person_contact"`
	Active        bool   `db:"active" json:"active"`
}
