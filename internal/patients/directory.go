// Package patients exposes the patient identity lookup consumed by the
// pharmacy layer. Patient intake and demographics CRUD live elsewhere;
// this directory only answers "does this patient exist, and what are they
// called" for routing checks and receipt headers.
package patients

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Identity is the minimal patient projection used by collaborators.
type Identity struct {
	PatientID  string `json:"patient_id"`
	Surname    string `json:"surname"`
	OtherNames string `json:"other_names"`
}

// DisplayName renders "Surname, Other Names" for documents.
func (i Identity) DisplayName() string {
	if i.OtherNames == "" {
		return i.Surname
	}
	return i.Surname + ", " + i.OtherNames
}

// ErrNotFound indicates an unknown patient identifier.
var ErrNotFound = errors.New("patients: patient not found")

// Directory looks patients up in the patients table.
type Directory struct {
	pool *pgxpool.Pool
}

// NewDirectory constructs a Directory.
func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

// Lookup returns the identity for a patient key.
func (d *Directory) Lookup(ctx context.Context, patientID string) (Identity, error) {
	var ident Identity
	err := d.pool.QueryRow(ctx, `SELECT patient_id, surname, other_names FROM patients WHERE patient_id = $1`, patientID).
		Scan(&ident.PatientID, &ident.Surname, &ident.OtherNames)
	if errors.Is(err, pgx.ErrNoRows) {
		return Identity{}, ErrNotFound
	}
	if err != nil {
		return Identity{}, err
	}
	return ident, nil
}
