package lento

import (
	"github.com/PuerkitoBio/goquery"

	"car-offers-bot/models"
	"car-offers-bot/scraper"
	"car-offers-bot/utils"
)

const (
	Name    = "Lento"
	baseURL = "https://lento.pl"
)

// Scraper extracts offers from a Lento listing table.
type Scraper struct {
	scraper.Base
}

// New creates a Lento adapter.
func New(fetcher scraper.Fetcher, logger *utils.Logger) *Scraper {
	return &Scraper{Base: scraper.NewBase(Name, fetcher, logger)}
}

// Extract parses every table row. A page without rows yields no listings.
func (s *Scraper) Extract(doc *goquery.Document) ([]models.Listing, error) {
	var listings []models.Listing
	doc.Find("div.tablelist-tr").Each(func(i int, row *goquery.Selection) {
		l, err := s.parseRow(row)
		if err != nil {
			s.Logger.Warn("[%s] Skipping row %d: %v", Name, i, err)
			return
		}
		listings = append(listings, l)
	})
	return listings, nil
}

func (s *Scraper) parseRow(row *goquery.Selection) (models.Listing, error) {
	link := row.Find("a.title-list-item").First()
	title := scraper.Text(link)
	if title == "" {
		return models.Listing{}, scraper.ErrNoTitle
	}
	href, _ := link.Attr("href")

	price := scraper.Text(row.Find("span.price-list-item").First())
	pub := scraper.Text(row.Find("div.data-list-item").First())

	return models.NewListing(title, price, scraper.AbsoluteURL(baseURL, href), pub), nil
}
