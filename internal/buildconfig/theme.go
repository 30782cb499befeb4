package buildconfig

// AxisFontFamily 是字体族主题轴的名称。
const AxisFontFamily = "fontFamily"

// DefaultsToken 在序列中展开为该主题键的内置默认序列。
const DefaultsToken = "...defaults"

// Theme 按主题轴、语义键组织有序的取值序列。
type Theme map[string]map[string][]string

// DefaultTheme 返回外部构建工具内置的默认主题（深拷贝）。
func DefaultTheme() Theme {
	return Theme{
		AxisFontFamily: {
			"sans": {
				"ui-sans-serif",
				"system-ui",
				"sans-serif",
				`"Apple Color Emoji"`,
				`"Segoe UI Emoji"`,
				`"Segoe UI Symbol"`,
				`"Noto Color Emoji"`,
			},
			"serif": {
				"ui-serif",
				"Georgia",
				"Cambria",
				`"Times New Roman"`,
				"Times",
				"serif",
			},
			"mono": {
				"ui-monospace",
				"SFMono-Regular",
				"Menlo",
				"Monaco",
				"Consolas",
				`"Liberation Mono"`,
				`"Courier New"`,
				"monospace",
			},
		},
	}
}

// HasAxis 判断主题是否定义了指定的轴。
func (t Theme) HasAxis(axis string) bool {
	_, ok := t[axis]
	return ok
}

// Sequence 返回 axis.key 的默认序列副本。
func (t Theme) Sequence(axis, key string) ([]string, bool) {
	keys, ok := t[axis]
	if !ok {
		return nil, false
	}
	seq, ok := keys[key]
	if !ok {
		return nil, false
	}
	return append([]string(nil), seq...), true
}

// Clone 返回主题的深拷贝。
func (t Theme) Clone() Theme {
	if t == nil {
		return nil
	}
	clone := make(Theme, len(t))
	for axis, keys := range t {
		inner := make(map[string][]string, len(keys))
		for key, seq := range keys {
			inner[key] = append([]string(nil), seq...)
		}
		clone[axis] = inner
	}
	return clone
}
