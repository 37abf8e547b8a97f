// Package geoip resolves client IPs to ISO country codes for the mock
// decision server.
package geoip

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// Resolver looks up countries in a MaxMind database, or in a list of CIDR
// ranges when no database is available. A nil *Resolver resolves nothing.
type Resolver struct {
	db     *geoip2.Reader
	ranges []cidrCountry
}

type cidrCountry struct {
	net     *net.IPNet
	country string
}

// Range maps a CIDR block to a country. It is also the JSON shape of the
// fallback file accepted by Open.
type Range struct {
	Net     string `json:"net"`
	Country string `json:"country"`
}

// Open loads the MaxMind database at path. If the file is not a MaxMind
// database it is read as a JSON array of Range.
func Open(path string) (*Resolver, error) {
	db, err := geoip2.Open(path)
	if err == nil {
		return &Resolver{db: db}, nil
	}
	data, rerr := os.ReadFile(path)
	if rerr != nil {
		return nil, fmt.Errorf("open geoip db: %w", err)
	}
	var ranges []Range
	if jerr := json.Unmarshal(data, &ranges); jerr != nil {
		return nil, fmt.Errorf("open geoip db: %w", err)
	}
	return FromRanges(ranges...)
}

// FromRanges builds a resolver from static CIDR ranges.
func FromRanges(ranges ...Range) (*Resolver, error) {
	r := &Resolver{}
	for _, rg := range ranges {
		_, n, err := net.ParseCIDR(rg.Net)
		if err != nil {
			return nil, fmt.Errorf("parse range %q: %w", rg.Net, err)
		}
		r.ranges = append(r.ranges, cidrCountry{net: n, country: strings.ToUpper(rg.Country)})
	}
	return r, nil
}

// Country returns the ISO country code for ip, or "" when unknown.
func (r *Resolver) Country(ip net.IP) string {
	if r == nil || ip == nil {
		return ""
	}
	if r.db != nil {
		if rec, err := r.db.Country(ip); err == nil {
			return rec.Country.IsoCode
		}
	}
	for _, c := range r.ranges {
		if c.net.Contains(ip) {
			return c.country
		}
	}
	return ""
}

// Close releases the database.
func (r *Resolver) Close() error {
	if r != nil && r.db != nil {
		return r.db.Close()
	}
	return nil
}
