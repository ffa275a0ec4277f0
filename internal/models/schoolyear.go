package models

import "time"

// SchoolYear is the academic-year bucket for projects. Divisions are the
// canonical class codes valid for that year; new years inherit the previous
// year's list unless overridden.
type SchoolYear struct {
	ID         uint      `gorm:"primaryKey"`
	SY         string    `gorm:"column:sy;unique;not null"` // "YYYY - YYYY"
	SYStart    time.Time `gorm:"column:sy_start;not null"`
	SYEnd      time.Time `gorm:"column:sy_end;not null"`
	NbProjects int       `gorm:"not null;default:0"`
	Divisions  string    `gorm:"not null"` // codes canoniques, CSV
}

// Dashboard is the single-row global lock.
// Lock: 0 ouvert, 1 fermé pour gestion/direction, 2 fermé pour tous.
type Dashboard struct {
	ID          uint `gorm:"primaryKey"`
	Lock        int  `gorm:"not null;default:0"`
	LockMessage string
}

// Queued action statuses.
const (
	ActionPending = "pending"
	ActionFailed  = "failed"
)

// QueuedAction is an outbox row: a deferred unit of work recorded in the
// same transaction as the triggering change, consumed later, deleted on
// success or marked failed.
type QueuedAction struct {
	ID         uint      `gorm:"primaryKey"`
	Code       string    `gorm:"uniqueIndex;not null"`
	UID        uint      `gorm:"not null;index"`
	Timestamp  time.Time `gorm:"not null"`
	Status     string    `gorm:"not null;index"` // pending, failed
	ActionType string    `gorm:"not null"`       // send_notification
	Parameters string    `gorm:"not null"`       // "<kind>,<project id>[,<comment id>]"
	Options    string    // destinataires pour les commentaires, CSV de pids
}
