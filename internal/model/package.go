package model

import (
	"fmt"
	"time"
)

type PackageStatus string

const (
	PackageStatusPending PackageStatus = "pending"
	PackageStatusSent    PackageStatus = "sent"
	PackageStatusDryRun  PackageStatus = "dry_run"
	PackageStatusFailed  PackageStatus = "failed"
)

// Terminal reports whether no further status transition is allowed.
func (s PackageStatus) Terminal() bool {
	switch s {
	case PackageStatusSent, PackageStatusDryRun, PackageStatusFailed:
		return true
	}
	return false
}

// Package is one fully-assembled unit of outreach work. Its id is the join
// key between the store row and the on-disk package file; the file holds the
// content fields only, lifecycle bookkeeping lives in the store.
type Package struct {
	ID          int64         `db:"id" json:"id"`
	Org         string        `db:"org" json:"org"`
	ContactName string        `db:"contact_name" json:"contact_name"`
	Emails      string        `db:"emails" json:"emails"`
	Phones      string        `db:"phones" json:"phones"`
	PDF         string        `db:"pdf" json:"pdf"`
	Subject     string        `db:"subject" json:"subject"`
	BodyText    string        `db:"body_text" json:"body_text"`
	BodyHTML    string        `db:"body_html" json:"body_html"`
	ListingURL  string        `db:"listing_url" json:"listing_url"`
	Status      PackageStatus `db:"status" json:"-"`
	CreatedAt   time.Time     `db:"created_at" json:"-"`
	UpdatedAt   time.Time     `db:"updated_at" json:"-"`
	SendResult  string        `db:"send_result" json:"-"`
}

// PackageFileName returns the canonical file name for a package id.
func PackageFileName(id int64) string {
	return fmt.Sprintf("package_%d.json", id)
}
