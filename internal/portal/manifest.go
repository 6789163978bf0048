package portal

import (
	"bufio"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// variant is one quality option advertised by a master playlist.
type variant struct {
	Bandwidth int
	URI       string
}

// parseMasterPlaylist extracts the quality variants from an HLS master
// playlist. A playlist without the #EXTM3U header is unrecognized.
func parseMasterPlaylist(manifest string) ([]variant, error) {
	scanner := bufio.NewScanner(strings.NewReader(manifest))

	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "#EXTM3U" {
		return nil, fmt.Errorf("%w: missing #EXTM3U header", ErrManifestParse)
	}

	var variants []variant
	pendingBandwidth := -1

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			bw, err := streamInfBandwidth(line)
			if err != nil {
				return nil, err
			}
			pendingBandwidth = bw
		case line == "" || strings.HasPrefix(line, "#"):
			// Other tags and blanks don't affect variant selection.
		default:
			if pendingBandwidth >= 0 {
				variants = append(variants, variant{Bandwidth: pendingBandwidth, URI: line})
				pendingBandwidth = -1
			}
		}
	}

	return variants, nil
}

// streamInfBandwidth parses the BANDWIDTH attribute of a #EXT-X-STREAM-INF tag.
func streamInfBandwidth(line string) (int, error) {
	attrs := strings.TrimPrefix(line, "#EXT-X-STREAM-INF:")
	for _, attr := range splitAttributes(attrs) {
		key, value, found := strings.Cut(attr, "=")
		if !found {
			continue
		}
		if strings.TrimSpace(key) == "BANDWIDTH" {
			bw, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return 0, fmt.Errorf("%w: bad BANDWIDTH %q", ErrManifestParse, value)
			}
			return bw, nil
		}
	}
	return 0, fmt.Errorf("%w: stream without BANDWIDTH", ErrManifestParse)
}

// splitAttributes splits an attribute list on commas, respecting quoted
// values (RESOLUTION and CODECS attributes may contain commas in quotes).
func splitAttributes(s string) []string {
	var parts []string
	var b strings.Builder
	inQuotes := false

	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			b.WriteRune(r)
		case r == ',' && !inQuotes:
			parts = append(parts, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 {
		parts = append(parts, b.String())
	}
	return parts
}

// SelectStreamURL picks the media stream URL from a playback manifest fetched
// at manifestURL. Master playlists select the highest-bandwidth variant by
// numeric comparison, never by list order; a media playlist (no variants)
// selects itself. Relative variant URIs resolve against the manifest URL.
func SelectStreamURL(manifestURL, manifest string) (string, error) {
	variants, err := parseMasterPlaylist(manifest)
	if err != nil {
		return "", err
	}
	if len(variants) == 0 {
		return manifestURL, nil
	}

	best := variants[0]
	for _, v := range variants[1:] {
		if v.Bandwidth > best.Bandwidth {
			best = v
		}
	}

	base, err := url.Parse(manifestURL)
	if err != nil {
		return "", fmt.Errorf("%w: bad manifest url: %v", ErrManifestParse, err)
	}
	ref, err := url.Parse(best.URI)
	if err != nil {
		return "", fmt.Errorf("%w: bad variant uri %q", ErrManifestParse, best.URI)
	}
	return base.ResolveReference(ref).String(), nil
}
