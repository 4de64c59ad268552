package prompt

import (
	_ "embed"
	"strings"
)

//go:embed template/manager.txt
var managerRaw string

// Manager returns the marketing-manager system framing for the given brand.
// Safe for concurrent use.
func Manager(brandID string) string {
	return strings.ReplaceAll(strings.TrimSpace(managerRaw), "{{brand}}", brandID)
}
