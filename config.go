package httpauth

import (
	"errors"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// NewCredentialsYAML parses a list of credentials from r, in the same
// shape as NewCredentialsJSON but written:
//
//	- domain: example.com
//	  path: /private
//	  username: alice
//	  password: hunter2
//
// It is the supplemented YAML counterpart spec.md's distillation
// dropped in favor of its JSON sibling; both return an OrderedCredentials.
func NewCredentialsYAML(r io.Reader) (Credentials, error) {
	if r == nil {
		return nil, errors.New("httpauth: nil io.Reader")
	}

	oc := &OrderedCredentials{}
	v := make([]Credential, 0)

	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&v); err != nil && err != io.EOF {
		return nil, err
	}

	for i := range v {
		v[i].Domain = strings.ToLower(v[i].Domain)
	}
	oc.v = v
	sort.Sort(oc)

	return oc, nil
}
