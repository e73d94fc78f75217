package platform

import (
	"bufio"
	"io"
	"strings"
)

// parseNetshRules reads `netsh advfirewall firewall show rule name=all
// verbose` output. Every "Rule Name:" line starts a new rule; the Program
// field is attached to the rule it follows.
func parseNetshRules(r io.Reader) ([]FirewallRule, error) {
	var (
		rules   []FirewallRule
		current *FirewallRule
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch {
		case strings.EqualFold(key, "Rule Name"):
			rules = append(rules, FirewallRule{Name: value})
			current = &rules[len(rules)-1]
		case strings.EqualFold(key, "Program") && current != nil:
			current.Program = value
		}
	}
	return rules, sc.Err()
}
