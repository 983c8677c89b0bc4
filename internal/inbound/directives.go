package inbound

// Directives are payload-level flags sent next to the message by internal tooling.
type Directives struct {
	DryRun bool
	// TargetTopic asks the router to skip scoring; it is honored only when valid.
	TargetTopic string
}

// ParseDirectives reads directives from the root object. Anything malformed is ignored.
func ParseDirectives(raw []byte) Directives {
	v, ok := decodePayload(raw)
	if !ok {
		return Directives{}
	}
	root := asObject(v)
	if root == nil {
		return Directives{}
	}
	return Directives{
		DryRun:      truthy(root["dryRun"]) || truthy(root["dry_run"]),
		TargetTopic: firstText(root, []string{"target_agent"}, []string{"targetAgent"}, []string{"target_topic"}),
	}
}
