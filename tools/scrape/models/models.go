package models

import "time"

// Post is one hydrated reel. Fields the vendor could not supply stay nil.
type Post struct {
	URL         string
	OwnerHandle *string
	OwnerName   *string
	Caption     *string
	Views       *int64
	Thumbnail   *string
	TakenAt     *time.Time
}

// Transcript is one fetched transcript, keyed by the URL that was asked for.
type Transcript struct {
	URL  string
	Text *string
}

// Profile carries the geography signals for one owner handle.
type Profile struct {
	Handle       string
	FullName     *string
	Biography    *string
	LocationName *string
}

// Batch wraps a vendor response with the latest remaining-credits observation,
// when the vendor reports one.
type Batch[T any] struct {
	Items   []T
	Credits *float64
}
