package config

import (
	"errors"
	"fmt"
)

const (
	PluginName     = "cloudwatch"
	ParamNamespace = "namespace"
	ParamRegion    = "region"
	ParamEndpoint  = "endpoint"
)

var (
	ErrConfigMissing  = errors.New("plugin configuration missing")
	ErrParamMissing   = errors.New("parameter missing")
	ErrParamWrongType = errors.New("parameter has wrong type")
	ErrParamEmpty     = errors.New("parameter is empty")
)

// PluginError reports why the plugin section of the host config was rejected.
type PluginError struct {
	Kind  error
	Param string
}

func (e *PluginError) Error() string {
	switch e.Kind {
	case ErrConfigMissing:
		return fmt.Sprintf("the %q plugin requires configuration under <script>.config.plugins.%s", PluginName, PluginName)
	case ErrParamMissing:
		return fmt.Sprintf("the %q parameter is required", e.Param)
	case ErrParamWrongType:
		return fmt.Sprintf("the %q param must have a string value", e.Param)
	case ErrParamEmpty:
		return fmt.Sprintf("the %q param must have a length of at least one", e.Param)
	default:
		return fmt.Sprintf("invalid %q plugin configuration", PluginName)
	}
}

func (e *PluginError) Unwrap() error {
	return e.Kind
}

// PluginConfig is the validated plugin section. It is a value type and shares
// nothing with the host map it was read from.
type PluginConfig struct {
	Namespace string
	Region    string
	Endpoint  string
}

// ValidatePlugin checks host.plugins.cloudwatch. Checks run in a fixed order and
// stop at the first failure: section presence, namespace presence, namespace type,
// namespace length. Optional string params are checked last.
func ValidatePlugin(host map[string]interface{}) error {
	_, err := validatePlugin(host)
	return err
}

// LoadPlugin validates the plugin section and copies it out of the host config.
func LoadPlugin(host map[string]interface{}) (PluginConfig, error) {
	section, err := validatePlugin(host)
	if err != nil {
		return PluginConfig{}, err
	}
	cfg := PluginConfig{Namespace: section[ParamNamespace].(string)}
	if raw, ok := lookupSetting(section, ParamRegion); ok {
		cfg.Region, _ = raw.(string)
	}
	if raw, ok := lookupSetting(section, ParamEndpoint); ok {
		cfg.Endpoint, _ = raw.(string)
	}
	return cfg, nil
}

func validatePlugin(host map[string]interface{}) (map[string]interface{}, error) {
	section, ok := pluginSection(host)
	if !ok {
		return nil, &PluginError{Kind: ErrConfigMissing}
	}

	raw, ok := lookupSetting(section, ParamNamespace)
	if !ok {
		return nil, &PluginError{Kind: ErrParamMissing, Param: ParamNamespace}
	}
	namespace, ok := raw.(string)
	if !ok {
		return nil, &PluginError{Kind: ErrParamWrongType, Param: ParamNamespace}
	}
	if len(namespace) == 0 {
		return nil, &PluginError{Kind: ErrParamEmpty, Param: ParamNamespace}
	}

	for _, param := range []string{ParamRegion, ParamEndpoint} {
		if raw, ok := lookupSetting(section, param); ok && raw != nil {
			if _, isString := raw.(string); !isString {
				return nil, &PluginError{Kind: ErrParamWrongType, Param: param}
			}
		}
	}

	return section, nil
}

// pluginSection resolves host.plugins.cloudwatch with case-insensitive keys.
func pluginSection(host map[string]interface{}) (map[string]interface{}, bool) {
	if host == nil {
		return nil, false
	}
	normalized, err := toStringKeyMap(host)
	if err != nil {
		return nil, false
	}
	rawPlugins, ok := normalized["plugins"]
	if !ok {
		return nil, false
	}
	plugins, err := toStringKeyMap(rawPlugins)
	if err != nil {
		return nil, false
	}
	rawSection, ok := plugins[PluginName]
	if !ok {
		return nil, false
	}
	if rawSection == nil {
		// "cloudwatch:" with no body is present but empty.
		return map[string]interface{}{}, true
	}
	section, err := toStringKeyMap(rawSection)
	if err != nil {
		return nil, false
	}
	return section, true
}
