package services

import (
	"fmt"
	"strings"

	"car-offers-bot/models"
)

// Channel status messages.
const (
	botStartedMsg     = "[BOT] Rozpoczynam automatyczne wysyłanie ofert."
	checkingSourceMsg = "🔍 Sprawdzanie ofert z %s..."
	offersSentMsg     = "✅ Wysłano %d nowych ofert z %s."
	dailyResetMsg     = "🔄 Reset listy wysłanych ofert (nowy dzień)."
	sourceErrorMsg    = "❌ Błąd podczas pobierania ofert z %s: %v"
)

// FormatListing renders a listing as a chat message. A missing publication
// time prints the sentinel; timeless listings get no time line at all.
func FormatListing(l models.Listing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n", l.Title)
	fmt.Fprintf(&b, "💸 Cena: %s\n", l.Price)
	if l.ShowsPublicationTime() {
		fmt.Fprintf(&b, "⏰ Czas publikacji: %s\n", l.PublicationTime)
	}
	fmt.Fprintf(&b, "🔗 Link: %s", l.URL)
	return b.String()
}
