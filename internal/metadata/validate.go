// Package metadata syncs off-chain claim metadata and EAS schemas.
package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gowebpki/jcs"

	"hypercertsIndexer/internal/model"
)

const metadataEvent = "metadata"

// ValidateMetadata checks a hypercert metadata document and returns its
// stored form. Canonical holds the JCS form of the whole document.
func ValidateMetadata(uri string, body []byte) (model.ClaimMetadata, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc map[string]interface{}
	if err := dec.Decode(&doc); err != nil {
		return model.ClaimMetadata{}, model.NewValidationError(metadataEvent, "", "not a JSON object: %v", err)
	}

	m := model.ClaimMetadata{URI: uri}
	var err error
	if m.Name, err = requiredString(doc, "name"); err != nil {
		return model.ClaimMetadata{}, err
	}
	if m.Description, err = requiredString(doc, "description"); err != nil {
		return model.ClaimMetadata{}, err
	}
	if m.Image, err = requiredString(doc, "image"); err != nil {
		return model.ClaimMetadata{}, err
	}
	if m.ExternalURL, err = optionalString(doc, "external_url"); err != nil {
		return model.ClaimMetadata{}, err
	}
	if m.AllowListURI, err = optionalString(doc, "allowList"); err != nil {
		return model.ClaimMetadata{}, err
	}
	if props, ok := doc["properties"]; ok && props != nil {
		switch props.(type) {
		case []interface{}, map[string]interface{}:
		default:
			return model.ClaimMetadata{}, model.NewValidationError(metadataEvent, "properties", "must be an array or object")
		}
	}

	if raw, ok := doc["hypercert"]; ok && raw != nil {
		hc, ok := raw.(map[string]interface{})
		if !ok {
			return model.ClaimMetadata{}, model.NewValidationError(metadataEvent, "hypercert", "must be an object")
		}
		if err := fillDimensions(&m, hc); err != nil {
			return model.ClaimMetadata{}, err
		}
	}

	canonical, err := jcs.Transform(body)
	if err != nil {
		return model.ClaimMetadata{}, model.NewValidationError(metadataEvent, "", "canonicalize: %v", err)
	}
	m.Canonical = canonical
	return m, nil
}

func fillDimensions(m *model.ClaimMetadata, hc map[string]interface{}) error {
	var err error
	if m.WorkScope, err = stringDimension(hc, "work_scope"); err != nil {
		return err
	}
	if m.ImpactScope, err = stringDimension(hc, "impact_scope"); err != nil {
		return err
	}
	if m.Contributors, err = stringDimension(hc, "contributors"); err != nil {
		return err
	}
	if m.Rights, err = stringDimension(hc, "rights"); err != nil {
		return err
	}
	if m.WorkTimeframe, err = timeframeDimension(hc, "work_timeframe"); err != nil {
		return err
	}
	if m.ImpactTimeframe, err = timeframeDimension(hc, "impact_timeframe"); err != nil {
		return err
	}
	return nil
}

func requiredString(doc map[string]interface{}, key string) (string, error) {
	v, ok := doc[key]
	if !ok || v == nil {
		return "", model.NewValidationError(metadataEvent, key, "missing")
	}
	s, ok := v.(string)
	if !ok {
		return "", model.NewValidationError(metadataEvent, key, "must be a string, got %T", v)
	}
	return s, nil
}

func optionalString(doc map[string]interface{}, key string) (string, error) {
	v, ok := doc[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", model.NewValidationError(metadataEvent, key, "must be a string, got %T", v)
	}
	return strings.TrimSpace(s), nil
}

// dimension returns the value array of a {name, value, display_value}
// property, or nil when the property is absent.
func dimension(hc map[string]interface{}, key string) (model.Dimension, bool, error) {
	raw, ok := hc[key]
	if !ok || raw == nil {
		return model.Dimension{}, false, nil
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return model.Dimension{}, false, model.NewValidationError(metadataEvent, "hypercert."+key, "must be an object")
	}
	var d model.Dimension
	if name, ok := obj["name"].(string); ok {
		d.Name = name
	}
	if display, ok := obj["display_value"].(string); ok {
		d.DisplayValue = display
	}
	values, ok := obj["value"].([]interface{})
	if !ok {
		return model.Dimension{}, false, model.NewValidationError(metadataEvent, "hypercert."+key+".value", "must be an array")
	}
	d.Value = values
	return d, true, nil
}

func stringDimension(hc map[string]interface{}, key string) ([]string, error) {
	d, ok, err := dimension(hc, key)
	if err != nil || !ok {
		return nil, err
	}
	out := make([]string, 0, len(d.Value))
	for i, v := range d.Value {
		s, ok := v.(string)
		if !ok {
			return nil, model.NewValidationError(metadataEvent, fmt.Sprintf("hypercert.%s.value[%d]", key, i), "must be a string")
		}
		out = append(out, s)
	}
	return out, nil
}

func timeframeDimension(hc map[string]interface{}, key string) ([]int64, error) {
	d, ok, err := dimension(hc, key)
	if err != nil || !ok {
		return nil, err
	}
	if len(d.Value) != 2 {
		return nil, model.NewValidationError(metadataEvent, "hypercert."+key+".value", "must hold start and end, got %d values", len(d.Value))
	}
	out := make([]int64, 0, 2)
	for i, v := range d.Value {
		n, err := toInt64(v)
		if err != nil {
			return nil, model.NewValidationError(metadataEvent, fmt.Sprintf("hypercert.%s.value[%d]", key, i), "%v", err)
		}
		out = append(out, n)
	}
	if out[0] != 0 && out[1] != 0 && out[1] < out[0] {
		return nil, model.NewValidationError(metadataEvent, "hypercert."+key+".value", "end %d before start %d", out[1], out[0])
	}
	return out, nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, fmt.Errorf("not an integer: %s", n)
		}
		return int64(f), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
