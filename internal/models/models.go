package models

import (
	"time"

	"gorm.io/gorm"
)

type ContractStatus string

type VersionStatus string

type PartyRole string

const (
	ContractStatusOpen   ContractStatus = "OPEN"
	ContractStatusClosed ContractStatus = "CLOSED"
)

const (
	VersionStatusPendingSignature VersionStatus = "PENDING_SIGNATURE"
	VersionStatusSigned           VersionStatus = "SIGNED"
	VersionStatusArchived         VersionStatus = "ARCHIVED"
)

const (
	PartyRoleInitiator    PartyRole = "INITIATOR"
	PartyRoleCounterparty PartyRole = "COUNTERPARTY"
)

// User is a resolved directory entry. Identity is the opaque UUID; the numeric
// ID is only the relational key.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UUID      string    `gorm:"uniqueIndex;type:varchar(36);not null" json:"uuid"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `gorm:"index;type:varchar(255)" json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Contract is the logical agreement spanning versions. Status only ever moves
// OPEN -> CLOSED; a closed contract is never reopened.
type Contract struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	Title            string           `gorm:"not null" json:"title"`
	Description      string           `json:"description"`
	Status           ContractStatus   `gorm:"type:varchar(16);not null;default:OPEN" json:"status"`
	CreatedByID      uint             `gorm:"not null;index" json:"created_by_id"`
	CreatedBy        User             `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
	UpdatedByID      *uint            `json:"updated_by_id,omitempty"`
	CurrentVersionID *uint            `json:"current_version_id,omitempty"`
	CurrentVersion   *ContractVersion `gorm:"foreignKey:CurrentVersionID" json:"current_version,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	DeletedAt        gorm.DeletedAt   `gorm:"index" json:"-"`
}

// ContractVersion is one immutable content snapshot. At most one version per
// contract is outside ARCHIVED at any time.
type ContractVersion struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	ContractID    uint          `gorm:"not null;uniqueIndex:idx_contract_version_number" json:"contract_id"`
	VersionNumber int           `gorm:"not null;uniqueIndex:idx_contract_version_number" json:"version_number"`
	StorageKey    string        `gorm:"not null" json:"storage_key"`
	ContentHash   string        `gorm:"type:varchar(64);not null" json:"content_hash"`
	Status        VersionStatus `gorm:"type:varchar(24);not null;default:PENDING_SIGNATURE" json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// ContractParty links a user to a contract under a role. The unique index
// makes the membership set a proper set.
type ContractParty struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ContractID uint      `gorm:"not null;uniqueIndex:idx_contract_party" json:"contract_id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_contract_party" json:"user_id"`
	User       User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role       PartyRole `gorm:"type:varchar(16);not null" json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

// Signature records one party having signed one version. The unique index on
// (contract_version_id, signer_id) is what makes double-signing impossible
// under concurrent requests, not the application-level check.
type Signature struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	ContractVersionID uint      `gorm:"not null;uniqueIndex:idx_version_signer" json:"contract_version_id"`
	SignerID          uint      `gorm:"not null;uniqueIndex:idx_version_signer" json:"signer_id"`
	Signer            User      `gorm:"foreignKey:SignerID" json:"signer,omitempty"`
	SignatureHash     string    `gorm:"type:varchar(64);not null" json:"signature_hash"`
	SignedAt          time.Time `gorm:"not null" json:"signed_at"`
}

// AnchorRecord is the relational pointer to one notarization event. Written
// exactly once, at completion, in the same transaction that flips the version
// to SIGNED; never updated afterwards.
type AnchorRecord struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	ContractVersionID uint      `gorm:"not null;uniqueIndex" json:"contract_version_id"`
	MetadataHash      string    `gorm:"type:varchar(64);not null" json:"metadata_hash"`
	AnchorID          string    `gorm:"not null" json:"anchor_id"`
	RecordedAt        time.Time `gorm:"not null" json:"recorded_at"`
}
