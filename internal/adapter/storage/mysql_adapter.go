package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rl1809/scan-intake/internal/core/domain"
	"github.com/rl1809/scan-intake/internal/port"
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) LookupByBarcode(ctx context.Context, code string) ([]domain.PartRecord, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.part_number, p.barcode, p.quantity,
		       p.min_stock_level, p.unit_cost, p.warehouse_id, w.name,
		       p.created_at, p.updated_at
		FROM parts p
		JOIN warehouses w ON w.id = p.warehouse_id
		WHERE p.barcode = ?
		ORDER BY p.updated_at DESC`, code,
	)
	if err != nil {
		return nil, fmt.Errorf("query parts: %w", err)
	}
	defer rows.Close()

	var parts []domain.PartRecord
	for rows.Next() {
		var p domain.PartRecord
		var unitCost string
		err := rows.Scan(&p.ID, &p.Name, &p.PartNumber, &p.Barcode,
			&p.CurrentQuantity, &p.MinStockLevel, &unitCost,
			&p.Warehouse.ID, &p.Warehouse.Name, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan part: %w", err)
		}
		if p.UnitCost, err = decimal.NewFromString(unitCost); err != nil {
			return nil, fmt.Errorf("parse unit cost: %w", err)
		}
		parts = append(parts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parts: %w", err)
	}

	for i := range parts {
		options, err := m.supplierOptions(ctx, parts[i].ID)
		if err != nil {
			return nil, err
		}
		parts[i].SupplierOptions = options
	}

	return parts, nil
}

func (m *MySQLAdapter) supplierOptions(ctx context.Context, partID string) ([]domain.SupplierOption, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT s.id, s.name, so.unit_cost, so.lead_time_days, so.preferred
		FROM supplier_options so
		JOIN suppliers s ON s.id = so.supplier_id
		WHERE so.part_id = ?
		ORDER BY so.preferred DESC, s.name`, partID,
	)
	if err != nil {
		return nil, fmt.Errorf("query supplier options: %w", err)
	}
	defer rows.Close()

	var options []domain.SupplierOption
	for rows.Next() {
		var o domain.SupplierOption
		var unitCost string
		if err := rows.Scan(&o.SupplierID, &o.Name, &unitCost, &o.LeadTimeDays, &o.Preferred); err != nil {
			return nil, fmt.Errorf("scan supplier option: %w", err)
		}
		if o.UnitCost, err = decimal.NewFromString(unitCost); err != nil {
			return nil, fmt.Errorf("parse supplier unit cost: %w", err)
		}
		options = append(options, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate supplier options: %w", err)
	}

	return options, nil
}

// CommitTransaction writes the audit row and applies the signed delta in one
// SQL transaction. The UPDATE carries the non-negative guard, so a commit that
// would overdraw stock matches no row and the whole transaction rolls back.
// The relative `quantity + ?` form also means two concurrent commits against
// the same part cannot lose an update.
func (m *MySQLAdapter) CommitTransaction(ctx context.Context, record domain.TransactionRecord) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO part_transactions
			(id, part_id, machine_id, type, quantity_signed, unit_cost,
			 notes, performed_by, performed_by_role, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.PartID, nullable(record.MachineID), record.Type,
		record.QuantitySigned, record.UnitCost.String(), record.Notes,
		record.PerformedBy, record.PerformedByRole, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE parts
		SET quantity = quantity + ?, updated_at = NOW()
		WHERE id = ? AND quantity + ? >= 0`,
		record.QuantitySigned, record.PartID, record.QuantitySigned,
	)
	if err != nil {
		return fmt.Errorf("update quantity: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrStockConflict
	}

	return tx.Commit()
}

func (m *MySQLAdapter) InsertTransaction(ctx context.Context, record domain.TransactionRecord) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO part_transactions
			(id, part_id, machine_id, type, quantity_signed, unit_cost,
			 notes, performed_by, performed_by_role, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.PartID, nullable(record.MachineID), record.Type,
		record.QuantitySigned, record.UnitCost.String(), record.Notes,
		record.PerformedBy, record.PerformedByRole, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) UpdatePartQuantity(ctx context.Context, partID string, newQuantity int) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE parts SET quantity = ?, updated_at = NOW() WHERE id = ?`,
		newQuantity, partID,
	)
	if err != nil {
		return fmt.Errorf("update quantity: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrUnknownPart
	}

	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
