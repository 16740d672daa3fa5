package otomoto

import (
	"github.com/PuerkitoBio/goquery"

	"car-offers-bot/models"
	"car-offers-bot/scraper"
	"car-offers-bot/utils"
)

const (
	Name      = "Otomoto"
	baseURL   = "https://www.otomoto.pl"
	maxOffers = 20
)

// Scraper extracts offers from an Otomoto search results page.
type Scraper struct {
	scraper.Base
}

// New creates an Otomoto adapter.
func New(fetcher scraper.Fetcher, logger *utils.Logger) *Scraper {
	return &Scraper{Base: scraper.NewBase(Name, fetcher, logger)}
}

// Extract parses at most the first 20 result articles. The page is unusable
// without its search-results container.
func (s *Scraper) Extract(doc *goquery.Document) ([]models.Listing, error) {
	results := doc.Find(`div[data-testid="search-results"]`).First()
	if results.Length() == 0 {
		return nil, &scraper.ParseError{Source: Name, Reason: "search results container not found"}
	}

	var listings []models.Listing
	results.Find("article").EachWithBreak(func(i int, article *goquery.Selection) bool {
		if i >= maxOffers {
			return false
		}
		l, err := s.parseArticle(article)
		if err != nil {
			s.Logger.Warn("[%s] Skipping article %d: %v", Name, i, err)
			return true
		}
		listings = append(listings, l)
		return true
	})

	return listings, nil
}

func (s *Scraper) parseArticle(article *goquery.Selection) (models.Listing, error) {
	link := article.Find("h2 a").First()
	title := scraper.Text(link)
	if title == "" {
		return models.Listing{}, scraper.ErrNoTitle
	}
	href, _ := link.Attr("href")

	price := models.NoPrice
	amount := scraper.Text(article.Find(`h3[data-sentry-element="Price"]`).First())
	currency := scraper.Text(article.Find(`p[data-sentry-element="PriceCurrency"]`).First())
	if amount != "" && currency != "" {
		price = amount + " " + currency
	}

	pub := models.NoPublicationTime
	dds := article.Find(`dl[data-sentry-element="MetaDataList"] dd`)
	if dds.Length() > 1 {
		if t := scraper.Text(dds.Eq(1)); t != "" {
			pub = t
		}
	}

	return models.NewListing(title, price, scraper.AbsoluteURL(baseURL, href), pub), nil
}
