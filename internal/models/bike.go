package models

import (
	"regexp"
	"time"
)

// BikeState is the transfer lifecycle state of a bike. A bike without an
// owner is unclaimed; claiming it makes it transferable; creating a
// transfer flips it to in_transfer until the transfer closes.
type BikeState string

const (
	BikeStateUnclaimed    BikeState = "unclaimed"
	BikeStateTransferable BikeState = "transferable"
	BikeStateInTransfer   BikeState = "in_transfer"
)

type BikeGender string

const (
	GenderMale   BikeGender = "male"
	GenderFemale BikeGender = "female"
	GenderUniSex BikeGender = "uni_sex"
)

type BikeKind string

const (
	KindCity     BikeKind = "city"
	KindMountain BikeKind = "mountain"
	KindRoad     BikeKind = "road"
	KindRace     BikeKind = "race"
	KindCargo    BikeKind = "cargo"
	KindHybrid   BikeKind = "hybrid"
	KindCruiser  BikeKind = "cruiser"
	KindFolding  BikeKind = "folding"
	KindBMX      BikeKind = "bmx"
	KindOther    BikeKind = "other"
)

type BikeColor string

const (
	ColorBlack  BikeColor = "black"
	ColorWhite  BikeColor = "white"
	ColorGray   BikeColor = "gray"
	ColorRed    BikeColor = "red"
	ColorBlue   BikeColor = "blue"
	ColorGreen  BikeColor = "green"
	ColorYellow BikeColor = "yellow"
	ColorOrange BikeColor = "orange"
	ColorPurple BikeColor = "purple"
	ColorOther  BikeColor = "other"
)

// Frame numbers are 1-4 letters, digits, and one trailing letter.
var frameNumberPattern = regexp.MustCompile(`^[A-Za-z]{1,4}[0-9]+[A-Za-z]$`)

// ValidFrameNumber reports whether s has the mandated frame number format.
func ValidFrameNumber(s string) bool {
	return frameNumberPattern.MatchString(s)
}

// Bike is a registered bicycle. OwnerID is nil exactly while the bike is
// unclaimed; the claim token is a one-shot secret consumed by the first
// successful claim. RegisteredBy keeps the account that filed the
// registration so it can hand the token out before anyone has claimed.
type Bike struct {
	ID           string
	FrameNumber  string
	OwnerID      *string
	RegisteredBy string
	Gender       BikeGender
	Kind         BikeKind
	Color        BikeColor
	Brand        string
	IsElectric   bool

	ImageURL      *string
	ImageObject   *string
	ReceiptURL    *string
	ReceiptObject *string

	ReportedStolen bool
	StolenAt       *time.Time

	ClaimToken string
	ClaimedAt  *time.Time

	State     BikeState
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClaimTokenAccessibleBy reports whether the account may see the claim
// token: the owner once the bike is claimed, the registrant while the
// token is still redeemable.
func (b *Bike) ClaimTokenAccessibleBy(accountID string) bool {
	if accountID == "" {
		return false
	}
	if b.OwnerID != nil {
		return *b.OwnerID == accountID
	}
	return b.State == BikeStateUnclaimed && b.RegisteredBy == accountID
}
