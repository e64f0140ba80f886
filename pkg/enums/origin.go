package enums

import (
	"fmt"
	"strings"
)

// Origin is the producing country of a lot; OriginAny is the wildcard.
type Origin string

const (
	OriginAny          Origin = "any"
	OriginIndia        Origin = "india"
	OriginVietnam      Origin = "vietnam"
	OriginIvoryCoast   Origin = "ivory_coast"
	OriginTanzania     Origin = "tanzania"
	OriginBenin        Origin = "benin"
	OriginGhana        Origin = "ghana"
	OriginNigeria      Origin = "nigeria"
	OriginGuineaBissau Origin = "guinea_bissau"
	OriginIndonesia    Origin = "indonesia"
	OriginCambodia     Origin = "cambodia"
)

var validOrigins = []Origin{
	OriginAny,
	OriginIndia,
	OriginVietnam,
	OriginIvoryCoast,
	OriginTanzania,
	OriginBenin,
	OriginGhana,
	OriginNigeria,
	OriginGuineaBissau,
	OriginIndonesia,
	OriginCambodia,
}

func (o Origin) String() string {
	return string(o)
}

func (o Origin) IsValid() bool {
	for _, candidate := range validOrigins {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrigin accepts case and separator variants such as "Ivory Coast".
func ParseOrigin(value string) (Origin, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	for _, candidate := range validOrigins {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid origin %q", value)
}
