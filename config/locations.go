package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

var defaultLocations = []string{
	// New South Wales
	"Sydney, New South Wales, Australia",
	"Newcastle, New South Wales, Australia",
	"Wollongong, New South Wales, Australia",
	"Central Coast, New South Wales, Australia",
	"Port Macquarie, New South Wales, Australia",
	"Coffs Harbour, New South Wales, Australia",
	"Wagga Wagga, New South Wales, Australia",
	"Albury, New South Wales, Australia",
	"Dubbo, New South Wales, Australia",
	"Tamworth, New South Wales, Australia",
	"Orange, New South Wales, Australia",
	"Bathurst, New South Wales, Australia",

	// Victoria
	"Melbourne, Victoria, Australia",
	"Geelong, Victoria, Australia",
	"Ballarat, Victoria, Australia",
	"Bendigo, Victoria, Australia",
	"Shepparton, Victoria, Australia",
	"Mildura, Victoria, Australia",
	"Warrnambool, Victoria, Australia",
	"Wodonga, Victoria, Australia",

	// Queensland
	"Brisbane, Queensland, Australia",
	"Gold Coast, Queensland, Australia",
	"Sunshine Coast, Queensland, Australia",
	"Townsville, Queensland, Australia",
	"Cairns, Queensland, Australia",
	"Toowoomba, Queensland, Australia",
	"Mackay, Queensland, Australia",
	"Rockhampton, Queensland, Australia",
	"Bundaberg, Queensland, Australia",
	"Hervey Bay, Queensland, Australia",

	// Western Australia
	"Perth, Western Australia, Australia",
	"Mandurah, Western Australia, Australia",
	"Bunbury, Western Australia, Australia",
	"Geraldton, Western Australia, Australia",
	"Kalgoorlie, Western Australia, Australia",
	"Albany, Western Australia, Australia",
	"Broome, Western Australia, Australia",

	// South Australia
	"Adelaide, South Australia, Australia",
	"Mount Gambier, South Australia, Australia",
	"Whyalla, South Australia, Australia",
	"Port Augusta, South Australia, Australia",
	"Port Lincoln, South Australia, Australia",
	"Murray Bridge, South Australia, Australia",

	// Tasmania
	"Hobart, Tasmania, Australia",
	"Launceston, Tasmania, Australia",
	"Devonport, Tasmania, Australia",
	"Burnie, Tasmania, Australia",

	// Northern Territory
	"Darwin, Northern Territory, Australia",
	"Alice Springs, Northern Territory, Australia",
	"Katherine, Northern Territory, Australia",

	// Australian Capital Territory
	"Canberra, Australian Capital Territory, Australia",
	"Belconnen, Australian Capital Territory, Australia",
	"Tuggeranong, Australian Capital Territory, Australia",
}

// DefaultLocations returns a copy of the built-in location table.
func DefaultLocations() []string {
	out := make([]string, len(defaultLocations))
	copy(out, defaultLocations)
	return out
}

// LoadLocations reads one location per line. Blank lines and lines starting
// with '#' are skipped; order is preserved.
func LoadLocations(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open locations file: %w", err)
	}
	defer f.Close()

	var locations []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		locations = append(locations, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read locations file: %w", err)
	}
	if len(locations) == 0 {
		return nil, fmt.Errorf("locations file %q has no entries", path)
	}
	return locations, nil
}
