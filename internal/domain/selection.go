package domain

import "encoding/json"

// SelectionCookieName is the durable per-browser key holding the kit
// configuration between the kit-builder and checkout steps.
const SelectionCookieName = "hp_kit_config"

// KitSelection is the user's kit configuration: chosen enhancement keys and
// whether quantities are doubled for a two-person fast.
type KitSelection struct {
	Extras    []string `json:"extras"`
	TwoPerson bool     `json:"twoPerson"`
}

// EncodeKitSelection serialises the selection for durable storage.
func EncodeKitSelection(sel KitSelection) string {
	if sel.Extras == nil {
		sel.Extras = []string{}
	}
	data, err := json.Marshal(sel)
	if err != nil {
		return `{"extras":[],"twoPerson":false}`
	}
	return string(data)
}

// DecodeKitSelection parses stored selection data. Absent or malformed input
// decodes to the empty selection; this never fails.
func DecodeKitSelection(raw string) KitSelection {
	empty := KitSelection{Extras: []string{}}
	if raw == "" {
		return empty
	}

	var wire struct {
		Extras    []any `json:"extras"`
		TwoPerson bool  `json:"twoPerson"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return empty
	}

	extras := make([]string, 0, len(wire.Extras))
	for _, entry := range wire.Extras {
		if key, ok := entry.(string); ok && key != "" {
			extras = append(extras, key)
		}
	}
	return KitSelection{Extras: extras, TwoPerson: wire.TwoPerson}
}
