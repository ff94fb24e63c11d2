// Package ruleset loads per-site request and document rules from YAML files.
package ruleset

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// None disables a header that would otherwise be sent by default.
const None = "none"

type RuleSet []Rule

type Rule struct {
	Domain  string   `yaml:"domain,omitempty"`
	Domains []string `yaml:"domains,omitempty"`
	Paths   []string `yaml:"paths,omitempty"`
	Headers Headers  `yaml:"headers,omitempty"`

	Injections []Injection `yaml:"injections,omitempty"`
}

// Headers overrides the upstream request headers for matching URLs.
type Headers struct {
	UserAgent     string `yaml:"user-agent,omitempty"`
	XForwardedFor string `yaml:"x-forwarded-for,omitempty"`
	Referer       string `yaml:"referer,omitempty"`
	Cookie        string `yaml:"cookie,omitempty"`
}

// Injection edits the elements matched by Position in a mirrored HTML page.
type Injection struct {
	Position string `yaml:"position,omitempty"`
	Append   string `yaml:"append,omitempty"`
	Prepend  string `yaml:"prepend,omitempty"`
	Replace  string `yaml:"replace,omitempty"`
}

// Load reads every .yml/.yaml file beneath the ";"-separated rulePaths. An
// empty rulePaths yields an empty ruleset.
func Load(rulePaths string) (RuleSet, error) {
	if rulePaths == "" {
		return RuleSet{}, nil
	}

	var ruleSet RuleSet
	var errs error

	for _, rulePath := range strings.Split(rulePaths, ";") {
		trimmedPath := strings.TrimSpace(rulePath)
		if trimmedPath == "" {
			continue
		}

		rules, err := loadPath(trimmedPath)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to load rules from '%s': %w", trimmedPath, err))
			continue
		}
		ruleSet = append(ruleSet, rules...)
	}

	if errs != nil {
		return nil, errs
	}

	log.Printf("INFO: Loaded %d rules for %d domains", ruleSet.Count(), ruleSet.DomainCount())
	return ruleSet, nil
}

func loadPath(root string) (RuleSet, error) {
	var rules RuleSet

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !(strings.HasSuffix(path, ".yml") || strings.HasSuffix(path, ".yaml")) {
			return nil
		}

		yamlFile, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read rules file '%s': %w", path, err)
		}

		var r RuleSet
		if err := yaml.Unmarshal(yamlFile, &r); err != nil {
			return fmt.Errorf("syntax error in rules file '%s': %w", path, err)
		}
		rules = append(rules, r...)

		return nil
	})

	return rules, err
}

// Match returns the first rule whose domains and paths cover host and path,
// or the zero Rule if none does. A rule domain also matches its subdomains.
func (rs RuleSet) Match(host, path string) Rule {
	host = strings.ToLower(host)

	for _, rule := range rs {
		for _, ruleDomain := range rule.domains() {
			ruleDomain = strings.ToLower(ruleDomain)
			if ruleDomain != host && !strings.HasSuffix(host, "."+ruleDomain) {
				continue
			}
			if len(rule.Paths) > 0 && !hasPrefixIn(path, rule.Paths) {
				continue
			}
			return rule
		}
	}

	return Rule{}
}

func (r Rule) domains() []string {
	if r.Domain == "" {
		return r.Domains
	}
	return append([]string{r.Domain}, r.Domains...)
}

// Apply sets the upstream request headers for req. userAgent is sent unless
// the rule overrides it; the other headers are only sent when the rule names
// them. The incoming referer is forwarded unless the rule overrides it.
func (r Rule) Apply(req *http.Request, userAgent, referer string) {
	setHeader(req, "User-Agent", r.Headers.UserAgent, userAgent)
	setHeader(req, "X-Forwarded-For", r.Headers.XForwardedFor, "")
	setHeader(req, "Referer", r.Headers.Referer, referer)
	setHeader(req, "Cookie", r.Headers.Cookie, "")
}

func setHeader(req *http.Request, name, override, fallback string) {
	v := fallback
	if override != "" {
		v = override
	}
	if v == "" || v == None {
		req.Header.Del(name)
		return
	}
	req.Header.Set(name, v)
}

// Inject applies the rule's injections to doc.
func (r Rule) Inject(doc *goquery.Document) {
	for _, injection := range r.Injections {
		if injection.Position == "" {
			continue
		}

		sel := doc.Find(injection.Position)
		if injection.Replace != "" {
			sel.ReplaceWithHtml(injection.Replace)
		}
		if injection.Append != "" {
			sel.AppendHtml(injection.Append)
		}
		if injection.Prepend != "" {
			sel.PrependHtml(injection.Prepend)
		}
	}
}

func (rs RuleSet) Domains() []string {
	var domains []string
	for _, rule := range rs {
		domains = append(domains, rule.domains()...)
	}
	return domains
}

func (rs RuleSet) DomainCount() int {
	return len(rs.Domains())
}

func (rs RuleSet) Count() int {
	return len(rs)
}

func hasPrefixIn(s string, list []string) bool {
	for _, x := range list {
		if strings.HasPrefix(s, x) {
			return true
		}
	}
	return false
}
