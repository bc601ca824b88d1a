package types

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// GeographyPoint is a WGS84 coordinate stored as a PostGIS geography point.
type GeographyPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks the coordinate lies on the globe.
func (g GeographyPoint) Validate() error {
	if math.IsNaN(g.Lat) || g.Lat < -90 || g.Lat > 90 {
		return fmt.Errorf("geography: latitude %v out of range", g.Lat)
	}
	if math.IsNaN(g.Lng) || g.Lng < -180 || g.Lng > 180 {
		return fmt.Errorf("geography: longitude %v out of range", g.Lng)
	}
	return nil
}

// Value produces an EWKT literal Postgres casts to geography.
func (g GeographyPoint) Value() (driver.Value, error) {
	return fmt.Sprintf("SRID=4326;POINT(%s %s)",
		strconv.FormatFloat(g.Lng, 'f', -1, 64),
		strconv.FormatFloat(g.Lat, 'f', -1, 64),
	), nil
}

// Scan accepts EWKT/WKT text or (E)WKB bytes, hex encoded or raw.
func (g *GeographyPoint) Scan(value any) error {
	if value == nil {
		*g = GeographyPoint{}
		return nil
	}

	switch v := value.(type) {
	case string:
		return g.scanString(v)
	case []byte:
		text := strings.TrimSpace(string(v))
		if looksLikeText(text) || isHex(text) {
			return g.scanString(text)
		}
		return g.fromWKB(v)
	default:
		return fmt.Errorf("geography: unsupported scan type %T", value)
	}
}

func (g *GeographyPoint) scanString(raw string) error {
	raw = strings.TrimSpace(raw)
	if looksLikeText(raw) {
		return g.fromText(raw)
	}
	decoded, err := decodeHex(raw)
	if err != nil {
		return err
	}
	return g.fromWKB(decoded)
}

func looksLikeText(raw string) bool {
	upper := strings.ToUpper(raw)
	return strings.HasPrefix(upper, "SRID=") || strings.HasPrefix(upper, "POINT")
}

func isHex(raw string) bool {
	if raw == "" || len(raw)%2 != 0 {
		return false
	}
	for _, r := range raw {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

func decodeHex(raw string) ([]byte, error) {
	if !isHex(raw) {
		return nil, fmt.Errorf("geography: unsupported text %q", raw)
	}
	out := make([]byte, len(raw)/2)
	for i := range out {
		b, err := strconv.ParseUint(raw[2*i:2*i+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("geography: decode hex %w", err)
		}
		out[i] = byte(b)
	}
	return out, nil
}

func (g *GeographyPoint) fromText(raw string) error {
	if idx := strings.Index(raw, ";"); idx != -1 && strings.HasPrefix(strings.ToUpper(raw), "SRID=") {
		raw = strings.TrimSpace(raw[idx+1:])
	}

	open := strings.Index(raw, "(")
	if open == -1 || !strings.HasSuffix(raw, ")") || strings.TrimSpace(strings.ToUpper(raw[:open])) != "POINT" {
		return fmt.Errorf("geography: unsupported text %q", raw)
	}

	segments := strings.Fields(raw[open+1 : len(raw)-1])
	if len(segments) != 2 {
		return fmt.Errorf("geography: unexpected POINT content %q", raw)
	}

	lng, err := parseCoordinate(segments[0])
	if err != nil {
		return err
	}
	lat, err := parseCoordinate(segments[1])
	if err != nil {
		return err
	}

	g.Lng, g.Lat = lng, lat
	return nil
}

const (
	wkbPointType = 1
	ewkbSRIDFlag = 0x20000000
)

func (g *GeographyPoint) fromWKB(raw []byte) error {
	if len(raw) < 21 {
		return fmt.Errorf("geography: wkb too short")
	}

	var order binary.ByteOrder
	switch raw[0] {
	case 0:
		order = binary.BigEndian
	case 1:
		order = binary.LittleEndian
	default:
		return fmt.Errorf("geography: invalid byte order %d", raw[0])
	}

	geomType := order.Uint32(raw[1:5])
	offset := 5
	if geomType&ewkbSRIDFlag != 0 {
		geomType &^= ewkbSRIDFlag
		offset += 4
	}
	if geomType != wkbPointType {
		return fmt.Errorf("geography: unexpected geometry type %d", geomType)
	}
	if len(raw) < offset+16 {
		return fmt.Errorf("geography: wkb too short")
	}

	g.Lng = math.Float64frombits(order.Uint64(raw[offset : offset+8]))
	g.Lat = math.Float64frombits(order.Uint64(raw[offset+8 : offset+16]))
	return nil
}

func parseCoordinate(value string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("geography: parse coordinate %w", err)
	}
	return f, nil
}
