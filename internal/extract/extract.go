// Package extract resolves listing fields from heterogeneous page markup.
//
// Extraction is a two-pass cascade: embedded ld+json structured data first,
// then per-field markup fallbacks. A later pass never overwrites a field an
// earlier pass already resolved, and no parse failure escapes as an error:
// unresolved fields simply stay nil.
package extract

import (
	"bytes"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"autoria-harvester/internal/harvest"
)

const (
	vinLength     = 17
	maxOdometerKm = 2_000_000
	minOdometerKm = 100
)

var (
	digitsRe     = regexp.MustCompile(`\d+`)
	thousandKmRe = regexp.MustCompile(`(?i)(\d+)\s*тис\.?\s*км`)
	plainKmRe    = regexp.MustCompile(`(?i)(\d+)\s*км`)
	nonDigitRe   = regexp.MustCompile(`\D`)
)

// Extractor turns fetched pages into listings.
type Extractor struct {
	logger *zap.Logger
}

// New constructs an Extractor.
func New(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract parses the page and resolves every listing field it can, plus the
// phone-lookup keys when the reveal-phone control is present.
func (e *Extractor) Extract(content []byte, pageURL string) (harvest.Listing, *harvest.PhoneLookup) {
	l := harvest.Listing{
		URL:     pageURL,
		FoundAt: time.Now(),
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		e.logger.Warn("unparseable page", zap.String("url", pageURL), zap.Error(err))
		l.Title = harvest.String(titleFromSlug(pageURL))
		return l, nil
	}

	e.applyStructured(doc, &l)
	e.applyMarkup(doc, &l, pageURL)

	return l, phoneLookup(doc)
}

// applyMarkup is the second pass: CSS selector and free-text fallbacks,
// applied per field only while the field is still unresolved.
func (e *Extractor) applyMarkup(doc *goquery.Document, l *harvest.Listing, pageURL string) {
	if l.Title == nil {
		l.Title = harvest.String(e.title(doc, pageURL))
	}

	if l.PriceUSD == nil {
		sel := doc.Find(`[data-currency="USD"], .price_value strong, .price-ticket__usd`).First()
		if n, ok := leadingInt(sel.Text()); ok {
			l.PriceUSD = harvest.Float(float64(n))
		}
	}

	if l.Odometer == nil {
		e.applyOdometerText(doc, l)
	}

	if l.SellerName == nil {
		if v := nodeText(doc, ".seller_info_name, .seller-info__name"); v != "" {
			l.SellerName = harvest.String(v)
		}
	}

	if l.ImageURL == nil {
		img := doc.Find(".photo-620x465 img, .gallery-order__item img").First()
		if src, ok := img.Attr("src"); ok && src != "" {
			l.ImageURL = harvest.String(src)
		} else if src, ok := img.Attr("data-src"); ok && src != "" {
			l.ImageURL = harvest.String(src)
		}
	}

	if l.ImageCount == nil {
		sel := doc.Find(".photo-count, [data-photo-count]").First()
		raw, ok := sel.Attr("data-photo-count")
		if !ok {
			raw = sel.Text()
		}
		if n, ok := leadingInt(raw); ok {
			l.ImageCount = harvest.Int(n)
		}
	}

	if l.PlateNumber == nil {
		if v := nodeText(doc, ".state-num, .auto-number"); v != "" {
			l.PlateNumber = harvest.String(v)
		}
	}

	if l.VIN == nil {
		sel := doc.Find(".label-vin, [data-vin], .vin-code").First()
		vin, ok := sel.Attr("data-vin")
		if !ok {
			vin = strings.TrimSpace(sel.Text())
		}
		if len(vin) == vinLength {
			l.VIN = harvest.String(vin)
		}
	}

	e.applySpecTable(doc, l)
}

// title resolves og:title, then heading selectors, then a last-resort slug
// derived from the URL path. It never returns an empty string.
func (e *Extractor) title(doc *goquery.Document, pageURL string) string {
	if v, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	if v := nodeText(doc, `h1.head, h1[class*="head"], h1`); v != "" {
		return v
	}
	return titleFromSlug(pageURL)
}

// applyOdometerText scans free text for "<N> тис. км" (thousands) and then
// plain "<N> км" readings.
func (e *Extractor) applyOdometerText(doc *goquery.Document, l *harvest.Listing) {
	text := doc.Text()
	if m := thousandKmRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			km := n * 1000
			if km <= maxOdometerKm {
				l.Odometer = harvest.Int(km)
				return
			}
			e.logger.Debug("discarding out-of-range odometer", zap.Int("km", km))
		}
	}
	if m := plainKmRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= minOdometerKm && n <= maxOdometerKm {
			l.Odometer = harvest.Int(n)
		}
	}
}

// specLabels maps each technical field to the label fragments it may appear
// under in the details block, Ukrainian first.
var specLabels = struct {
	fuel, transmission, engine, drive []string
}{
	fuel:         []string{"пальн", "паливо", "fuel"},
	transmission: []string{"коробка", "кпп", "transmission"},
	engine:       []string{"двигун", "об'єм", "engine"},
	drive:        []string{"привід", "drive"},
}

// applySpecTable builds a label→value map from the #details block and
// resolves any technical spec still missing after the structured pass.
func (e *Extractor) applySpecTable(doc *goquery.Document, l *harvest.Listing) {
	details := doc.Find("#details")
	if details.Length() == 0 {
		return
	}

	specs := map[string]string{}
	details.Find(".technical-info__item, .car-characteristics__item, dd").Each(func(_ int, item *goquery.Selection) {
		label := strings.TrimSpace(item.Find(".label, dt, .key").First().Text())
		value := strings.TrimSpace(item.Find(".argument, dd, .value").First().Text())
		if label != "" && value != "" {
			specs[strings.ToLower(label)] = value
		}
	})

	lookup := func(fragments []string) *string {
		for _, frag := range fragments {
			for label, val := range specs {
				if strings.Contains(label, frag) {
					return harvest.String(val)
				}
			}
		}
		return nil
	}

	if l.FuelType == nil {
		l.FuelType = lookup(specLabels.fuel)
	}
	if l.Transmission == nil {
		l.Transmission = lookup(specLabels.transmission)
	}
	if l.EngineVolume == nil {
		l.EngineVolume = lookup(specLabels.engine)
	}
	if l.DriveType == nil {
		l.DriveType = lookup(specLabels.drive)
	}
}

// phoneLookup captures the reveal-phone widget keys. Numbers load via XHR,
// so only the lookup keys live in the page itself.
func phoneLookup(doc *goquery.Document) *harvest.PhoneLookup {
	btn := doc.Find("[data-hash], [data-phone-hash]").First()
	if btn.Length() == 0 {
		return nil
	}
	hash, ok := btn.Attr("data-hash")
	if !ok {
		hash, _ = btn.Attr("data-phone-hash")
	}
	id, ok := btn.Attr("data-car-id")
	if !ok {
		id, _ = btn.Attr("data-id")
	}
	expires, _ := btn.Attr("data-expires")
	return &harvest.PhoneLookup{
		ListingID: id,
		Hash:      hash,
		Expires:   expires,
	}
}

// titleFromSlug derives a human-readable title from the listing URL path,
// e.g. ".../auto_toyota_camry_12345.html" becomes "toyota camry".
func titleFromSlug(pageURL string) string {
	base := path.Base(strings.SplitN(strings.SplitN(pageURL, "?", 2)[0], "#", 2)[0])
	base = strings.TrimSuffix(base, path.Ext(base))

	parts := strings.Split(base, "_")
	words := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" || p == "auto" || digitsOnly(p) {
			continue
		}
		words = append(words, p)
	}
	if len(words) == 0 {
		if base != "" {
			return base
		}
		return pageURL
	}
	return strings.Join(words, " ")
}

func digitsOnly(s string) bool {
	return s != "" && !nonDigitRe.MatchString(s)
}

// nodeText returns the trimmed text of the first match, or "".
func nodeText(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

// leadingInt extracts the first digit run from text that may contain
// thousands separators and non-breaking spaces.
func leadingInt(text string) (int, bool) {
	cleaned := strings.NewReplacer(" ", "", " ", "", ",", "").Replace(text)
	m := digitsRe.FindString(cleaned)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}
