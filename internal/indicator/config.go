package indicator

import (
	"fmt"
	"strconv"
	"strings"
)

// Поддерживаемые индикаторы и требуемое количество параметров.
// Отрицательное значение означает "один и более".
var supportedIndicators = map[string]int{
	"ma":     -1,
	"ema":    -1,
	"rsi":    1,
	"macd":   3,
	"bbands": 3,
	"kdj":    3,
	"atr":    1,
}

// Spec описывает один индикатор с параметрами
type Spec struct {
	Name   string
	Params []int
}

// Group упорядоченный набор индикаторов с общим ключом группы
type Group struct {
	Key   string // пустая строка для индикаторов без префикса группы
	Specs []Spec
}

// Config разобранная конфигурация индикаторов.
// Порядок групп и индикаторов внутри групп сохраняется.
type Config struct {
	Groups []Group
}

// ConfigError ошибка разбора конфигурации с указанием строки
type ConfigError struct {
	Line   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("ошибка конфигурации индикаторов в строке %q: %s", e.Line, e.Reason)
}

// ParseConfig разбирает текстовую конфигурацию вида:
//
//	ema=20,120
//	atr=14
//	1_ma=20,30,60
//
// Строки разделяются переводом строки или точкой с запятой,
// строки с # пропускаются. Разбор идемпотентен и не имеет побочных эффектов.
func ParseConfig(raw string) (*Config, error) {
	cfg := &Config{}
	groupIdx := make(map[string]int)

	lines := strings.Split(strings.ReplaceAll(raw, ";", "\n"), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, &ConfigError{Line: line, Reason: "отсутствует знак '='"}
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		group, name, err := splitGroupKey(key)
		if err != nil {
			return nil, &ConfigError{Line: line, Reason: err.Error()}
		}

		params, err := parseParams(value)
		if err != nil {
			return nil, &ConfigError{Line: line, Reason: err.Error()}
		}

		if err := validateParams(name, params); err != nil {
			return nil, &ConfigError{Line: line, Reason: err.Error()}
		}

		idx, ok := groupIdx[group]
		if !ok {
			cfg.Groups = append(cfg.Groups, Group{Key: group})
			idx = len(cfg.Groups) - 1
			groupIdx[group] = idx
		}
		cfg.Groups[idx].Specs = append(cfg.Groups[idx].Specs, Spec{Name: name, Params: params})
	}

	if len(cfg.Groups) == 0 {
		return nil, &ConfigError{Line: raw, Reason: "конфигурация не содержит ни одного индикатора"}
	}

	return cfg, nil
}

// splitGroupKey отделяет префикс группы от имени индикатора.
// Ключ без префикса должен сам быть известным индикатором.
func splitGroupKey(key string) (group, name string, err error) {
	if _, ok := supportedIndicators[key]; ok {
		return "", key, nil
	}

	prefix, rest, found := strings.Cut(key, "_")
	if found {
		if _, ok := supportedIndicators[rest]; ok {
			return prefix, rest, nil
		}
	}

	return "", "", fmt.Errorf("неизвестный индикатор %q", key)
}

func parseParams(value string) ([]int, error) {
	if value == "" {
		return nil, fmt.Errorf("не заданы параметры")
	}

	var params []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("некорректный параметр %q", part)
		}
		if n <= 0 {
			return nil, fmt.Errorf("параметр должен быть положительным, получено %d", n)
		}
		params = append(params, n)
	}

	if len(params) == 0 {
		return nil, fmt.Errorf("не заданы параметры")
	}
	return params, nil
}

func validateParams(name string, params []int) error {
	want := supportedIndicators[name]
	if want > 0 && len(params) != want {
		return fmt.Errorf("%s требует %d параметра(ов), получено %d", name, want, len(params))
	}
	// Выборочное стандартное отклонение требует окно не меньше 2
	if name == "bbands" && params[0] < 2 {
		return fmt.Errorf("период bbands должен быть не меньше 2")
	}
	return nil
}

// String сериализует конфигурацию обратно в текстовый вид.
// Порядок строк соответствует порядку разбора.
func (c *Config) String() string {
	var b strings.Builder
	for _, g := range c.Groups {
		for _, s := range g.Specs {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			if g.Key != "" {
				b.WriteString(g.Key)
				b.WriteByte('_')
			}
			b.WriteString(s.Name)
			b.WriteByte('=')
			for i, p := range s.Params {
				if i > 0 {
					b.WriteByte(',')
				}
				b.WriteString(strconv.Itoa(p))
			}
		}
	}
	return b.String()
}

// Specs возвращает все индикаторы конфигурации в порядке объявления
func (c *Config) Specs() []Spec {
	var specs []Spec
	for _, g := range c.Groups {
		specs = append(specs, g.Specs...)
	}
	return specs
}
