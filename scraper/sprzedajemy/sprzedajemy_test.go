package sprzedajemy

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"car-offers-bot/utils"
)

const page = `<html><body>
<ul class="list normal">
  <li id="offer-1">
    <h2 class="title"><a href="/toyota-yaris-nr1">Toyota Yaris</a></h2>
    <div class="pricing"><span class="price">12 000 zł</span></div>
    <div class="time-and-verified"><time class="time" datetime="2024-03-18 09:15:00">dziś 09:15</time></div>
  </li>
  <li class="banner">advert</li>
  <li id="offer-2">
    <h2 class="title"><a href="https://sprzedajemy.pl/fiat-punto-nr2">Fiat Punto</a></h2>
    <div class="pricing"><span class="price">4 000 zł</span></div>
    <div class="time-and-verified"><time class="time">wczoraj</time></div>
  </li>
  <li id="offer-3"><h2 class="title"></h2></li>
</ul>
</body></html>`

func TestExtract(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		t.Fatal(err)
	}

	listings, err := New(nil, utils.NewNopLogger()).Extract(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("listings: got %d, want 2", len(listings))
	}

	tests := []struct {
		title, price, url, pub string
	}{
		{"Toyota Yaris", "12 000 zł", "https://sprzedajemy.pl/toyota-yaris-nr1", "2024-03-18 09:15:00"},
		{"Fiat Punto", "4 000 zł", "https://sprzedajemy.pl/fiat-punto-nr2", "wczoraj"},
	}
	for i, tt := range tests {
		l := listings[i]
		if l.Title != tt.title || l.Price != tt.price || l.URL != tt.url || l.PublicationTime != tt.pub {
			t.Errorf("listing %d: got %+v, want title=%q price=%q url=%q pub=%q",
				i, l, tt.title, tt.price, tt.url, tt.pub)
		}
	}
}

func TestExtractWithoutList(t *testing.T) {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(`<html><body><p>Brak wyników</p></body></html>`))
	listings, err := New(nil, nil).Extract(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listings) != 0 {
		t.Errorf("listings: got %d, want 0", len(listings))
	}
}
