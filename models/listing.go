package models

import "time"

const (
	// NoPublicationTime marks a listing whose site did not expose when it was posted.
	NoPublicationTime = "Brak informacji o czasie"
	// NoPrice is used when a site shows no price for a listing.
	NoPrice = "Brak ceny"
)

// Key identifies an offer for deduplication purposes. Two listings with the
// same title and price are the same offer, whatever their URL or source.
type Key struct {
	Title string
	Price string
}

// Listing is one normalised classified-ad record. It is a value type: copy it,
// never mutate a shared one.
type Listing struct {
	Title           string
	Price           string
	URL             string
	PublicationTime string
	Source          string
	ScrapedAt       time.Time

	// timeless is set for sites that never publish a posting time.
	timeless bool
}

// NewListing builds a Listing stamped with the current time. An empty
// publication time is replaced by NoPublicationTime.
func NewListing(title, price, url, publicationTime string) Listing {
	if publicationTime == "" {
		publicationTime = NoPublicationTime
	}
	if price == "" {
		price = NoPrice
	}
	return Listing{
		Title:           title,
		Price:           price,
		URL:             url,
		PublicationTime: publicationTime,
		ScrapedAt:       time.Now(),
	}
}

// Key returns the dedup key of the listing.
func (l Listing) Key() Key {
	return Key{Title: l.Title, Price: l.Price}
}

// WithSource returns a copy of the listing attributed to source.
func (l Listing) WithSource(source string) Listing {
	l.Source = source
	return l
}

// Timeless returns a copy of the listing for a site that has no notion of a
// publication time. Its message carries no publication time line.
func (l Listing) Timeless() Listing {
	l.PublicationTime = NoPublicationTime
	l.timeless = true
	return l
}

// ShowsPublicationTime reports whether messages for the listing include the
// publication time line, sentinel or not.
func (l Listing) ShowsPublicationTime() bool {
	return !l.timeless
}

// HasPublicationTime reports whether the site supplied a publication time.
func (l Listing) HasPublicationTime() bool {
	return l.PublicationTime != "" && l.PublicationTime != NoPublicationTime
}

// DedupRecord is one persisted row of the sent-offers log.
type DedupRecord struct {
	Day             string
	Title           string
	Price           string
	URL             string
	Source          string
	PublicationTime string
}

// Key returns the dedup key of the record.
func (r DedupRecord) Key() Key {
	return Key{Title: r.Title, Price: r.Price}
}

// NewDedupRecord builds the persisted form of a listing for the given day.
// An absent publication time is stored as an empty field.
func NewDedupRecord(day string, l Listing) DedupRecord {
	pub := l.PublicationTime
	if !l.HasPublicationTime() {
		pub = ""
	}
	return DedupRecord{
		Day:             day,
		Title:           l.Title,
		Price:           l.Price,
		URL:             l.URL,
		Source:          l.Source,
		PublicationTime: pub,
	}
}
