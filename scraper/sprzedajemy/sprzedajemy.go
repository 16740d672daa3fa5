package sprzedajemy

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"car-offers-bot/models"
	"car-offers-bot/scraper"
	"car-offers-bot/utils"
)

const (
	Name    = "Sprzedajemy"
	baseURL = "https://sprzedajemy.pl"
)

// Scraper extracts offers from the Sprzedajemy result list.
type Scraper struct {
	scraper.Base
}

// New creates a Sprzedajemy adapter.
func New(fetcher scraper.Fetcher, logger *utils.Logger) *Scraper {
	return &Scraper{Base: scraper.NewBase(Name, fetcher, logger)}
}

// Extract parses list items whose id starts with "offer-". Other items in the
// list are ads and separators.
func (s *Scraper) Extract(doc *goquery.Document) ([]models.Listing, error) {
	list := doc.Find("ul.list.normal").First()
	if list.Length() == 0 {
		s.Logger.Debug("[%s] Result list not present", Name)
		return nil, nil
	}

	var listings []models.Listing
	list.Find("li").Each(func(i int, li *goquery.Selection) {
		id, _ := li.Attr("id")
		if !strings.HasPrefix(id, "offer-") {
			return
		}
		l, err := s.parseItem(li)
		if err != nil {
			s.Logger.Warn("[%s] Skipping %s: %v", Name, id, err)
			return
		}
		listings = append(listings, l)
	})
	return listings, nil
}

func (s *Scraper) parseItem(li *goquery.Selection) (models.Listing, error) {
	link := li.Find("h2.title a").First()
	title := scraper.Text(link)
	if title == "" {
		return models.Listing{}, scraper.ErrNoTitle
	}
	href, _ := link.Attr("href")

	price := scraper.Text(li.Find("div.pricing span.price").First())

	pub := ""
	if tm := li.Find("div.time-and-verified time.time").First(); tm.Length() > 0 {
		if dt, ok := tm.Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
			pub = strings.TrimSpace(dt)
		} else {
			pub = scraper.Text(tm)
		}
	}

	return models.NewListing(title, price, scraper.AbsoluteURL(baseURL, href), pub), nil
}
