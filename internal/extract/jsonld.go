package extract

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"autoria-harvester/internal/harvest"
)

// applyStructured runs the first extraction pass over every embedded
// ld+json block. Fields already resolved by an earlier block are kept.
func (e *Extractor) applyStructured(doc *goquery.Document, l *harvest.Listing) {
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var raw any
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return
		}
		obj := firstObject(raw)
		if obj == nil {
			return
		}
		e.applyObject(obj, l)
	})
}

// firstObject normalizes an ld+json payload to a single mapping. The block
// may be an object, a list of objects, or an object carrying a @graph list.
func firstObject(raw any) map[string]any {
	switch v := raw.(type) {
	case map[string]any:
		if graph, ok := v["@graph"].([]any); ok {
			if obj := firstObject(graph); obj != nil {
				return obj
			}
		}
		return v
	case []any:
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				return obj
			}
		}
	}
	return nil
}

func (e *Extractor) applyObject(obj map[string]any, l *harvest.Listing) {
	if l.Title == nil {
		if name := asString(obj["name"]); name != "" {
			l.Title = harvest.String(name)
		}
	}

	if l.PriceUSD == nil {
		offers := obj["offers"]
		if list, ok := offers.([]any); ok && len(list) > 0 {
			offers = list[0]
		}
		if m, ok := offers.(map[string]any); ok {
			if price, ok := asFloat(m["price"]); ok {
				l.PriceUSD = harvest.Float(price)
			}
		}
	}

	if l.ImageURL == nil {
		if img := imageURL(obj["image"]); img != "" {
			l.ImageURL = harvest.String(img)
		}
	}

	if l.VIN == nil {
		if vin := asString(obj["vehicleIdentificationNumber"]); len(vin) == vinLength {
			l.VIN = harvest.String(vin)
		}
	}

	if l.Odometer == nil {
		e.applyMileage(obj["mileageFromOdometer"], l)
	}

	if l.FuelType == nil {
		if v := asString(obj["fuelType"]); v != "" {
			l.FuelType = harvest.String(v)
		}
	}
	if l.Transmission == nil {
		if v := asString(obj["vehicleTransmission"]); v != "" {
			l.Transmission = harvest.String(v)
		}
	}
	if l.DriveType == nil {
		if v := asString(obj["driveWheelConfiguration"]); v != "" {
			l.DriveType = harvest.String(v)
		}
	}
	if l.EngineVolume == nil {
		if v := engineVolume(obj); v != "" {
			l.EngineVolume = harvest.String(v)
		}
	}
}

// applyMileage reads schema.org mileageFromOdometer. A unit marked as
// thousands ("тис") scales the value by 1000. Results above the realistic
// bound are discarded rather than clamped; the bound itself is kept.
func (e *Extractor) applyMileage(raw any, l *harvest.Listing) {
	m, ok := raw.(map[string]any)
	if !ok {
		return
	}
	val, ok := asFloat(m["value"])
	if !ok {
		return
	}
	unit := strings.ToLower(asString(m["unitCode"]))
	km := int(val)
	if strings.Contains(unit, "тис") || strings.Contains(unit, "thousand") {
		km *= 1000
	}
	if km < 0 || km > maxOdometerKm {
		e.logger.Debug("discarding out-of-range odometer", zap.Int("km", km))
		return
	}
	l.Odometer = harvest.Int(km)
}

// imageURL unwraps the schema.org image field: a plain string, an object
// with url/contentUrl, or a list of either.
func imageURL(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case map[string]any:
		if u := asString(v["url"]); u != "" {
			return u
		}
		return asString(v["contentUrl"])
	case []any:
		for _, item := range v {
			if u := imageURL(item); u != "" {
				return u
			}
		}
	}
	return ""
}

// engineVolume accepts flat engineDisplacement strings/numbers or a nested
// vehicleEngine object.
func engineVolume(obj map[string]any) string {
	switch v := obj["engineDisplacement"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case map[string]any:
		return asString(v["value"])
	}
	if eng, ok := obj["vehicleEngine"].(map[string]any); ok {
		switch d := eng["engineDisplacement"].(type) {
		case string:
			return d
		case float64:
			return strconv.FormatFloat(d, 'f', -1, 64)
		case map[string]any:
			return asString(d["value"])
		}
	}
	return ""
}

func asString(raw any) string {
	s, _ := raw.(string)
	return strings.TrimSpace(s)
}

func asFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
