package billing

import "strings"

// descPaths names the metadata fields a resource type stores its logical
// instance attribution under. The zero value falls back to the defaults.
type descPaths struct {
	instanceID   string
	instanceName string
}

const (
	defaultInstanceIDPath   = "instance_id"
	defaultInstanceNamePath = "instance_name"
)

// resourceDescPaths is the single classification table mapping a resource
// type to the description fields carrying its instance id and name. Every
// read-side query that attributes frames to an instance consults this table;
// it must stay faithful to the metering sources:
//
//	image frames carry the owning server under properties.instance_uuid,
//	compute frames name the server in "name",
//	bandwidth frames in "display_name",
//	everything else uses instance_id / instance_name.
var resourceDescPaths = map[string]descPaths{
	ResTypeImage:        {instanceID: "properties.instance_uuid"},
	ResTypeCompute:      {instanceName: "name"},
	ResTypeBandwidthIn:  {instanceName: "display_name"},
	ResTypeBandwidthOut: {instanceName: "display_name"},
}

// InstanceID extracts the logical instance identifier for a frame's
// resource type from its description metadata.
func InstanceID(resType string, desc Metadata) string {
	path := defaultInstanceIDPath
	if p, ok := resourceDescPaths[resType]; ok && p.instanceID != "" {
		path = p.instanceID
	}
	return descString(desc, path)
}

// InstanceName extracts the human-readable instance name for a frame's
// resource type from its description metadata.
func InstanceName(resType string, desc Metadata) string {
	path := defaultInstanceNamePath
	if p, ok := resourceDescPaths[resType]; ok && p.instanceName != "" {
		path = p.instanceName
	}
	return descString(desc, path)
}

// descString resolves a dotted path against the metadata. Collectors emit
// both nested objects and flattened dotted keys, so a literal key match is
// tried before descending segment by segment.
func descString(desc Metadata, path string) string {
	if desc == nil {
		return ""
	}
	if v, ok := desc[path]; ok {
		return asString(v)
	}
	segments := strings.Split(path, ".")
	var cur any = map[string]any(desc)
	for _, seg := range segments {
		m, ok := toStringMap(cur)
		if !ok {
			return ""
		}
		cur, ok = m[seg]
		if !ok {
			return ""
		}
	}
	return asString(cur)
}

func toStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Metadata:
		return m, true
	default:
		return nil, false
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
