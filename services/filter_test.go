package services

import (
	"strings"
	"testing"

	"car-offers-bot/models"
	"car-offers-bot/utils"
)

func newTestLogger() *utils.Logger { return utils.NewNopLogger() }

func offer(title, price, url string) models.Listing {
	return models.NewListing(title, price, url, "").WithSource("Otomoto")
}

func TestOfferCache(t *testing.T) {
	c := NewOfferCache()
	if c.Day() != "" || c.Len() != 0 {
		t.Fatalf("new cache: day %q, len %d", c.Day(), c.Len())
	}

	golf := models.Key{Title: "Golf", Price: "10000 PLN"}
	c.Reset("2024-03-18", map[models.Key]struct{}{golf: {}})
	if !c.Contains(golf) {
		t.Error("loaded key missing")
	}

	polo := models.Key{Title: "Polo", Price: "8000 PLN"}
	c.Add(polo)
	if !c.Contains(polo) || c.Len() != 2 {
		t.Errorf("after Add: contains %v, len %d", c.Contains(polo), c.Len())
	}

	c.Reset("2024-03-19", nil)
	if c.Day() != "2024-03-19" || c.Len() != 0 || c.Contains(golf) {
		t.Errorf("after Reset: day %q, len %d", c.Day(), c.Len())
	}
	c.Add(golf)
	if c.Len() != 1 {
		t.Errorf("Add after nil Reset: len %d", c.Len())
	}
}

func TestFilterSkipsCachedKeys(t *testing.T) {
	f := NewFilter(newTestLogger())
	cache := NewOfferCache()
	cache.Reset("2024-03-18", nil)
	cache.Add(models.Key{Title: "Golf", Price: "10000 PLN"})

	got := f.Fresh([]models.Listing{
		offer("Golf", "10000 PLN", "https://a/1"),
		offer("Golf", "9500 PLN", "https://a/2"),
		offer("Polo", "8000 PLN", "https://a/3"),
	}, cache)

	if len(got) != 2 {
		t.Fatalf("fresh: got %d, want 2", len(got))
	}
	if got[0].Price != "9500 PLN" || got[1].Title != "Polo" {
		t.Errorf("fresh order: got %+v", got)
	}
}

func TestFilterSameKeyDifferentURL(t *testing.T) {
	f := NewFilter(newTestLogger())
	cache := NewOfferCache()

	got := f.Fresh([]models.Listing{
		offer("Golf", "10000 PLN", "https://a/first"),
		offer("Golf", "10000 PLN", "https://a/second"),
	}, cache)

	if len(got) != 1 {
		t.Fatalf("fresh: got %d, want 1", len(got))
	}
	if got[0].URL != "https://a/first" {
		t.Errorf("kept %s, want the first occurrence", got[0].URL)
	}
}

func TestFilterDropsEmptyTitle(t *testing.T) {
	f := NewFilter(newTestLogger())
	got := f.Fresh([]models.Listing{offer("  ", "1 PLN", "https://a/1")}, NewOfferCache())
	if len(got) != 0 {
		t.Errorf("fresh: got %d, want 0", len(got))
	}
}

func TestFormatListing(t *testing.T) {
	tests := []struct {
		name string
		l    models.Listing
		want string
	}{
		{
			name: "with publication time",
			l:    models.NewListing("VW Golf IV 1.9 TDI", "9 900 PLN", "https://www.otomoto.pl/oferta/golf", "Dzisiaj 10:15"),
			want: "**VW Golf IV 1.9 TDI**\n💸 Cena: 9 900 PLN\n⏰ Czas publikacji: Dzisiaj 10:15\n🔗 Link: https://www.otomoto.pl/oferta/golf",
		},
		{
			name: "without publication time",
			l:    models.NewListing("Opel Astra", "7000 zł", "https://lento.pl/astra", ""),
			want: "**Opel Astra**\n💸 Cena: 7000 zł\n⏰ Czas publikacji: Brak informacji o czasie\n🔗 Link: https://lento.pl/astra",
		},
		{
			name: "timeless source",
			l:    models.NewListing("Skoda Fabia", "9 900 PLN", "https://autoplac.pl/oferta/fabia", "").Timeless(),
			want: "**Skoda Fabia**\n💸 Cena: 9 900 PLN\n🔗 Link: https://autoplac.pl/oferta/fabia",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatListing(tt.l); got != tt.want {
				t.Errorf("FormatListing:\ngot  %q\nwant %q", got, tt.want)
			}
		})
	}
}

func TestCycleReportTotals(t *testing.T) {
	r := newCycleReport("0123456789abcdef", "2024-03-18")
	a := r.source("otomoto", "Otomoto")
	a.Fetched, a.New, a.Delivered, a.DeliveryFailed = 10, 3, 2, 1
	b := r.source("lento", "Lento")
	b.Fetched, b.New, b.Delivered = 4, 1, 1
	r.source("autoplac", "Autoplac").Err = errTest

	fetched, fresh, delivered, failed := r.Totals()
	if fetched != 14 || fresh != 4 || delivered != 3 || failed != 1 {
		t.Errorf("Totals: got %d/%d/%d/%d", fetched, fresh, delivered, failed)
	}
	if got := r.FailedSources(); len(got) != 1 || got[0] != "autoplac" {
		t.Errorf("FailedSources: got %v", got)
	}

	out := r.String()
	for _, want := range []string{"cycle 01234567", "Otomoto", "Autoplac", "error: test failure"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}
