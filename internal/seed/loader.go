package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"pharmadist/m/internal/database"
)

// LoadInventory ingests rows of product_name,qty,unit,purchase_price,default_price. The first row is a
// header. Malformed rows are logged and skipped; the rest load in one transaction. Nothing is loaded
// when the inventory already has rows.
func LoadInventory(ctx context.Context, db *database.DB, log *zap.Logger, r io.Reader) (int, error) {
	query := db.Rebind(`INSERT INTO inventory (product_name, qty, unit, purchase_price, default_price) VALUES (?, ?, ?, ?, ?)`)
	return load(ctx, db, log, r, "inventory", 5, func(tx *sqlx.Tx, record []string) error {
		name := strings.TrimSpace(record[0])
		if name == "" {
			return errors.New("empty product_name")
		}
		qty, err := strconv.ParseInt(strings.TrimSpace(record[1]), 10, 64)
		if err != nil || qty < 0 {
			return fmt.Errorf("invalid qty %q", record[1])
		}
		purchase, err := decimal.NewFromString(strings.TrimSpace(record[3]))
		if err != nil {
			return fmt.Errorf("invalid purchase_price %q", record[3])
		}
		price, err := decimal.NewFromString(strings.TrimSpace(record[4]))
		if err != nil {
			return fmt.Errorf("invalid default_price %q", record[4])
		}
		_, err = tx.ExecContext(ctx, query, name, qty, strings.TrimSpace(record[2]), purchase, price)
		return err
	})
}

// LoadStores ingests rows of store_name,store_address,store_person,store_person_contact.
func LoadStores(ctx context.Context, db *database.DB, log *zap.Logger, r io.Reader) (int, error) {
	query := db.Rebind(`INSERT INTO medical_stores (store_name, store_address, store_person, store_person_contact) VALUES (?, ?, ?, ?)`)
	return load(ctx, db, log, r, "medical_stores", 4, func(tx *sqlx.Tx, record []string) error {
		name := strings.TrimSpace(record[0])
		if name == "" {
			return errors.New("empty store_name")
		}
		_, err := tx.ExecContext(ctx, query, name, strings.TrimSpace(record[1]), strings.TrimSpace(record[2]), strings.TrimSpace(record[3]))
		return err
	})
}

// LoadFile opens path and hands it to loader. A missing file is logged, not fatal.
func LoadFile(ctx context.Context, db *database.DB, log *zap.Logger, path string,
	loader func(context.Context, *database.DB, *zap.Logger, io.Reader) (int, error)) {
	file, err := os.Open(path)
	if err != nil {
		log.Warn("unable to open seed file", zap.String("path", path), zap.Error(err))
		return
	}
	defer file.Close()

	rows, err := loader(ctx, db, log, file)
	if err != nil {
		log.Error("seed failed", zap.String("path", path), zap.Error(err))
		return
	}
	log.Info("seeded rows", zap.String("path", path), zap.Int("rows", rows))
}

// EnsureUser creates username with a bcrypt hash of password unless it already exists.
func EnsureUser(ctx context.Context, db *database.DB, username, password, role string) (bool, error) {
	var exists bool
	if err := db.GetContext(ctx, &exists, db.Rebind(`SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`), username); err != nil {
		return false, fmt.Errorf("lookup user: %w", err)
	}
	if exists {
		return false, nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	if _, err := db.ExecContext(ctx, db.Rebind(`INSERT INTO users (username, password, role) VALUES (?, ?, ?)`), username, string(hashed), role); err != nil {
		if database.IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert user: %w", err)
	}
	return true, nil
}

func load(ctx context.Context, db *database.DB, log *zap.Logger, r io.Reader, table string, columns int, insert func(*sqlx.Tx, []string) error) (int, error) {
	var existing int
	if err := db.GetContext(ctx, &existing, `SELECT COUNT(*) FROM `+table); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	if existing > 0 {
		log.Info("seed skipped, table not empty", zap.String("table", table), zap.Int("rows", existing))
		return 0, nil
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	// Skip header
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("read header: %w", err)
	}

	rows := 0
	err := db.InTx(ctx, func(tx *sqlx.Tx) error {
		for line := 2; ; line++ {
			record, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				log.Warn("unable to read seed row", zap.Int("line", line), zap.Error(err))
				continue
			}
			if len(record) < columns {
				log.Warn("short seed row", zap.Int("line", line), zap.Int("columns", len(record)))
				continue
			}
			err = database.Savepoint(ctx, tx, "seed_row", func() error { return insert(tx, record) })
			if err != nil {
				log.Warn("skipping seed row", zap.Int("line", line), zap.Error(err))
				continue
			}
			rows++
		}
	})
	if err != nil {
		return 0, err
	}
	return rows, nil
}
