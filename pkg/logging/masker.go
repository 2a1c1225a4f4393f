package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

const maskedValue = "***MASKED***"

// sensitiveFields are masked whatever the configuration lists. Gateway
// credentials typically arrive as request fields with one of these names.
var sensitiveFields = []string{
	"password", "passwd", "pwd", "secret", "token", "apikey", "api_key",
	"authorization", "credential", "private",
}

// Masker provides sensitive data masking functionality
type Masker struct {
	config   MaskingConfig
	patterns []*regexp.Regexp
}

// NewMasker creates a new masker
func NewMasker(config MaskingConfig) *Masker {
	m := &Masker{config: config}

	for _, pattern := range config.Patterns {
		if re, err := regexp.Compile(pattern); err == nil {
			m.patterns = append(m.patterns, re)
		}
	}

	if config.MaskEmails {
		m.patterns = append(m.patterns, regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`))
	}

	if config.MaskAPIKeys {
		m.patterns = append(m.patterns, regexp.MustCompile(`(?i)\b[a-z0-9]{32,}\b`))
	}

	return m
}

// MaskAttr masks sensitive data in a log attribute. Group values are masked
// member by member.
func (m *Masker) MaskAttr(groups []string, attr slog.Attr) slog.Attr {
	if m == nil || !m.config.Enabled {
		return attr
	}

	if m.ShouldMaskField(attr.Key) {
		return slog.String(attr.Key, maskedValue)
	}

	switch attr.Value.Kind() {
	case slog.KindString:
		return slog.String(attr.Key, m.MaskString(attr.Value.String()))
	case slog.KindGroup:
		members := attr.Value.Group()
		masked := make([]slog.Attr, len(members))
		for i, member := range members {
			masked[i] = m.MaskAttr(append(groups, attr.Key), member)
		}
		return slog.Attr{Key: attr.Key, Value: slog.GroupValue(masked...)}
	}

	return attr
}

// MaskFields returns a copy of request fields safe to log
func (m *Masker) MaskFields(fields map[string]any) map[string]any {
	masked := make(map[string]any, len(fields))
	for key, value := range fields {
		switch {
		case m == nil || !m.config.Enabled:
			masked[key] = value
		case m.ShouldMaskField(key):
			masked[key] = maskedValue
		default:
			switch v := value.(type) {
			case string:
				masked[key] = m.MaskString(v)
			case map[string]any:
				masked[key] = m.MaskFields(v)
			default:
				masked[key] = value
			}
		}
	}
	return masked
}

// ShouldMaskField checks if a field should be completely masked
func (m *Masker) ShouldMaskField(field string) bool {
	fieldLower := strings.ToLower(field)

	for _, maskField := range m.config.Fields {
		if strings.ToLower(maskField) == fieldLower {
			return true
		}
	}

	for _, sensitive := range sensitiveFields {
		if strings.Contains(fieldLower, sensitive) {
			return true
		}
	}

	return false
}

// MaskString masks sensitive patterns in a string
func (m *Masker) MaskString(s string) string {
	masked := s

	for _, pattern := range m.patterns {
		masked = pattern.ReplaceAllStringFunc(masked, func(match string) string {
			if len(match) <= 4 {
				return "***"
			}
			// Show first and last characters, mask the middle
			return match[:2] + strings.Repeat("*", len(match)-4) + match[len(match)-2:]
		})
	}

	return masked
}
