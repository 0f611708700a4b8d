package geoip

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"golang.org/x/text/language"
)

// ErrUnavailable is returned by lookups on a resolver without a database.
var ErrUnavailable = errors.New("geoip resolver unavailable")

const maxCachedAddrs = 4096

// Resolver maps client addresses to ISO country codes with a MaxMind
// country database. Answers for public addresses are cached; private and
// loopback addresses never reach the database.
type Resolver struct {
	reader *geoip2.Reader

	mu    sync.Mutex
	cache map[netip.Addr]string
}

// NewResolver opens the database at path. An empty path disables lookups
// and returns a nil resolver.
func NewResolver(path string) (*Resolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return &Resolver{reader: reader, cache: make(map[netip.Addr]string)}, nil
}

// CountryCode returns the upper-case ISO code for ip, or "" when the address
// is not routable or the database has no country for it.
func (r *Resolver) CountryCode(ip string) (string, error) {
	if r == nil || r.reader == nil {
		return "", ErrUnavailable
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return "", fmt.Errorf("geoip: invalid ip %q", ip)
	}
	addr = addr.Unmap()
	if !addr.IsGlobalUnicast() || addr.IsPrivate() {
		return "", nil
	}

	r.mu.Lock()
	code, ok := r.cache[addr]
	r.mu.Unlock()
	if ok {
		return code, nil
	}

	record, err := r.reader.Country(net.IP(addr.AsSlice()))
	if err != nil {
		return "", fmt.Errorf("geoip: lookup country: %w", err)
	}
	if record != nil {
		code = strings.ToUpper(record.Country.IsoCode)
	}
	r.remember(addr, code)
	return code, nil
}

func (r *Resolver) remember(addr netip.Addr, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.cache) >= maxCachedAddrs {
		clear(r.cache)
	}
	r.cache[addr] = code
}

// Close releases the database.
func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}

// LanguageForCountry returns the most likely written language of a country as
// a base subtag: "ID" gives "id" and "BR" gives "pt". Unknown codes give "".
func LanguageForCountry(country string) string {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		return ""
	}
	region, err := language.ParseRegion(country)
	if err != nil {
		return ""
	}
	tag, err := language.Compose(language.Und, region)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No || base.String() == "und" {
		return ""
	}
	return base.String()
}
