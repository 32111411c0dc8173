package load

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/seantis/ocitool/pkg/layout"
)

// ReadPlatforms reads the platform map written next to a layout. A map
// without entries is refused, as there would be nothing to tag.
func ReadPlatforms(path string) (layout.PlatformMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading platforms: %w", err)
	}

	var platforms layout.PlatformMap
	if err := json.Unmarshal(data, &platforms); err != nil {
		return nil, fmt.Errorf("failed to parse %s as platform map: %w", path, err)
	}

	if len(platforms) == 0 {
		return nil, fmt.Errorf("%s: %w", path, layout.ErrNoPlatforms)
	}

	for d := range platforms {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("invalid digest in %s: %w", path, err)
		}
	}

	return platforms, nil
}
