package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Issue is one configuration problem, keyed by its koanf path.
type Issue struct {
	Path    string
	Message string
}

func (i Issue) String() string { return i.Path + ": " + i.Message }

// ErrInvalid wraps every validation failure returned by Validate.
var ErrInvalid = errors.New("config: invalid")

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Issues returns every problem with c, struct-tag rules first.
func (c *Config) Issues() []Issue {
	var out []Issue

	if err := getValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []Issue{{Path: "", Message: err.Error()}}
		}
		for _, fe := range verrs {
			out = append(out, Issue{Path: koanfPath(fe.Namespace()), Message: describe(fe)})
		}
	}

	switch c.Source.Kind {
	case "mongo":
		if c.Source.URI == "" {
			out = append(out, Issue{Path: "source.uri", Message: "is required for source.kind=mongo"})
		}
		if c.Source.Database == "" {
			out = append(out, Issue{Path: "source.database", Message: "is required for source.kind=mongo"})
		}
	case "jsonfile":
		if c.Source.Dir == "" {
			out = append(out, Issue{Path: "source.dir", Message: "is required for source.kind=jsonfile"})
		}
	}

	if c.Metrics.Backend == "pushgateway" && c.Metrics.PushgatewayURL == "" {
		out = append(out, Issue{Path: "metrics.pushgateway_url", Message: "is required for metrics.backend=pushgateway"})
	}
	return out
}

// Validate returns nil or an error wrapping ErrInvalid that lists every issue.
func (c *Config) Validate() error {
	issues := c.Issues()
	if len(issues) == 0 {
		return nil
	}
	msgs := make([]string, len(issues))
	for i, iss := range issues {
		msgs[i] = iss.String()
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

// koanfPath turns "Config.storage.kind" into "storage.kind".
func koanfPath(ns string) string {
	_, rest, ok := strings.Cut(ns, ".")
	if !ok {
		return ns
	}
	return rest
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fmt.Sprint(fe.Value()))
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "url":
		return "must be a URL"
	case "hostname_port":
		return "must be host:port"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
