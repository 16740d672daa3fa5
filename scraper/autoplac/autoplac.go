package autoplac

import (
	"github.com/PuerkitoBio/goquery"

	"car-offers-bot/models"
	"car-offers-bot/scraper"
	"car-offers-bot/utils"
)

const (
	Name    = "Autoplac"
	baseURL = "https://autoplac.pl"
)

// Scraper extracts offers from Autoplac result cards. Autoplac does not show
// publication times, so every listing carries the sentinel.
type Scraper struct {
	scraper.Base
}

// New creates an Autoplac adapter.
func New(fetcher scraper.Fetcher, logger *utils.Logger) *Scraper {
	return &Scraper{Base: scraper.NewBase(Name, fetcher, logger)}
}

func (s *Scraper) Extract(doc *goquery.Document) ([]models.Listing, error) {
	var listings []models.Listing
	doc.Find("nwa-offer-card-unified").Each(func(i int, card *goquery.Selection) {
		l, err := s.parseCard(card)
		if err != nil {
			s.Logger.Warn("[%s] Skipping card %d: %v", Name, i, err)
			return
		}
		listings = append(listings, l)
	})
	return listings, nil
}

func (s *Scraper) parseCard(card *goquery.Selection) (models.Listing, error) {
	title := scraper.Text(card.Find("p.content__name").First())
	if title == "" {
		return models.Listing{}, scraper.ErrNoTitle
	}
	price := scraper.Text(card.Find("p.price-info__main").First())
	href, _ := card.Find("a").First().Attr("href")

	return models.NewListing(title, price, scraper.AbsoluteURL(baseURL, href), "").Timeless(), nil
}
