// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/util/json"

	"github.com/elastic/support-diagnostics/internal/catalog"
	"github.com/elastic/support-diagnostics/internal/rest"
	"github.com/elastic/support-diagnostics/internal/version"
)

// versionSource locates the version of a product: the endpoint to ask and the field holding it.
type versionSource struct {
	url   string
	field []string
}

var versionSources = map[catalog.Product]versionSource{
	catalog.Elasticsearch: {url: "/", field: []string{"version", "number"}},
	catalog.Kibana:        {url: "/api/status", field: []string{"version", "number"}},
	catalog.Logstash:      {url: "/", field: []string{"version"}},
}

// securityAPIVersion moved the security APIs out of the _xpack namespace.
var securityAPIVersion = version.MustParse("7.0.0")

const privilegesRequest = `{"cluster":["monitor","manage","read_ccr","read_ilm","read_slm","monitor_ml","monitor_transform","monitor_watcher"]}`

func checkVersion(ctx context.Context, d *diagnostic) error {
	product := d.rc.Product
	src := versionSources[product]
	o := d.executor.Execute(ctx, catalog.CallDescriptor{
		Name:       "version",
		URL:        src.url,
		Extension:  ".json",
		Retry:      true,
		ShowErrors: true,
		Method:     http.MethodGet,
	}, d.rc)
	if !o.OK() {
		return fmt.Errorf("could not retrieve the %s version: %s %s", product.DisplayName(), o.Class, strings.TrimSpace(string(o.Body)))
	}
	raw, err := stringField(o.Body, src.field...)
	if err != nil {
		return fmt.Errorf("while reading the %s version: %w", product.DisplayName(), err)
	}
	v, err := version.Parse(product.DisplayName(), raw)
	if err != nil {
		return err
	}
	supported, err := d.settings.Supports(product, v)
	if err != nil {
		return fmt.Errorf("while checking supported versions: %w", err)
	}
	if !supported {
		return fmt.Errorf("%s %s is not supported, supported versions are %s", product.DisplayName(), v, d.settings.Supported[product])
	}
	d.rc.Version = v

	cat, err := catalog.ForProduct(product)
	if err != nil {
		return err
	}
	d.rc.Calls = cat.Resolve(v, d.rc.Mode, d.log)
	d.log.Infof("%s version %s, %d calls to collect in %s mode", product.DisplayName(), v, d.rc.Calls.Len(), d.rc.Mode)
	return nil
}

func checkAuth(ctx context.Context, d *diagnostic) error {
	url := "/_security/user/_has_privileges"
	if !d.rc.Version.AtLeast(securityAPIVersion) {
		url = "/_xpack/security/user/_has_privileges"
	}
	o := d.executor.Fetch(ctx, catalog.CallDescriptor{
		Name:   "has_privileges",
		URL:    url,
		Method: http.MethodPost,
		Body:   privilegesRequest,
	}, d.rc)
	switch {
	case o.Class == rest.FatalFailure:
		d.log.Warnf("The configured user was rejected (%d), most calls will fail", o.Status)
	case !o.OK():
		d.log.Infof("Could not check privileges (%d), security is most likely disabled", o.Status)
	default:
		obj, err := decode(o.Body)
		if err != nil {
			d.log.Warnf("Could not read privileges: %v", err)
			return nil
		}
		if all, found, _ := unstructured.NestedBool(obj, "has_all_requested"); found && !all {
			d.log.Warn("The configured user lacks some monitoring privileges, some calls may fail")
		}
	}
	return nil
}

func platformDetails(ctx context.Context, d *diagnostic) error {
	d.rc.LogDir = d.settings.LogDirs[d.rc.Product]
	if d.rc.Product == catalog.Elasticsearch {
		o := d.executor.Fetch(ctx, catalog.CallDescriptor{
			Name:   "nodes_platform",
			URL:    "/_nodes/os,process,settings",
			Method: http.MethodGet,
			Retry:  true,
		}, d.rc)
		if o.OK() {
			osName, logDir, err := nodePlatform(o.Body, d.rc.Host)
			if err != nil {
				d.log.Warnf("Could not read node details: %v", err)
			}
			if osName != "" {
				d.rc.TargetOS = osFamily(osName)
			}
			if logDir != "" {
				d.rc.LogDir = logDir
			}
		} else {
			d.log.Warnf("Could not retrieve node details: %s", o.Class)
		}
	}
	if d.params.LogDir != "" {
		d.rc.LogDir = d.params.LogDir
	}
	if d.commander == nil {
		return nil
	}
	d.rc.RunSystemCalls = true
	d.rc.TargetOS = d.commander.OS(ctx)
	if _, err := d.commander.Run(ctx, "docker info"); err == nil {
		d.rc.DockerPresent = true
	}
	d.log.Infof("Target host runs %s, logs in %s, docker present: %t", d.rc.TargetOS, d.rc.LogDir, d.rc.DockerPresent)
	return nil
}

// nodePlatform returns the operating system name and log directory of the node bound to host, or
// of the first node if none matches.
func nodePlatform(body []byte, host string) (string, string, error) {
	obj, err := decode(body)
	if err != nil {
		return "", "", err
	}
	nodes, found, err := unstructured.NestedMap(obj, "nodes")
	if err != nil {
		return "", "", err
	}
	if !found || len(nodes) == 0 {
		return "", "", errors.New("no nodes in response")
	}
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	chosen, _ := nodes[ids[0]].(map[string]interface{})
	for _, id := range ids {
		node, ok := nodes[id].(map[string]interface{})
		if !ok {
			continue
		}
		h, _, _ := unstructured.NestedString(node, "host")
		ip, _, _ := unstructured.NestedString(node, "ip")
		if h == host || ip == host {
			chosen = node
			break
		}
	}
	if chosen == nil {
		return "", "", errors.New("unexpected node format")
	}
	osName, _, _ := unstructured.NestedString(chosen, "os", "name")
	logDir, _, _ := unstructured.NestedString(chosen, "settings", "path", "logs")
	return osName, logDir, nil
}

func osFamily(name string) string {
	name = strings.ToLower(name)
	switch {
	case strings.Contains(name, "windows"):
		return "windows"
	case strings.Contains(name, "mac"), strings.Contains(name, "darwin"):
		return "darwin"
	default:
		return "linux"
	}
}

func kibanaSpaces(ctx context.Context, d *diagnostic) error {
	d.rc.Spaces = []string{rest.DefaultSpace}
	desc, ok := d.rc.Calls.Get("kibana_spaces")
	if !ok {
		return nil
	}
	o := d.executor.Fetch(ctx, desc, d.rc)
	if !o.OK() {
		d.log.Warnf("Could not list Kibana spaces, collecting the default space only: %s", o.Class)
		return nil
	}
	spaces, err := spaceIDs(o.Body)
	if err != nil {
		d.log.Warnf("Could not read Kibana spaces: %v", err)
		return nil
	}
	d.rc.Spaces = spaces
	d.log.Infof("Collecting Kibana spaces %v", spaces)
	return nil
}

// spaceIDs returns the ids of the spaces in body, the default space first.
func spaceIDs(body []byte) ([]string, error) {
	var list []interface{}
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, err
	}
	ids := []string{rest.DefaultSpace}
	for _, item := range list {
		space, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id, found, _ := unstructured.NestedString(space, "id")
		if !found || id == "" || id == rest.DefaultSpace {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func runQueries(ctx context.Context, d *diagnostic) error {
	calls := d.rc.Calls.All()
	failed := 0
	for _, c := range calls {
		if err := ctx.Err(); err != nil {
			return err
		}
		if o := d.executor.Execute(ctx, c, d.rc); !o.OK() {
			failed++
		}
	}
	d.log.Infof("Collected %d of %d calls", len(calls)-failed, len(calls))
	return nil
}

func decode(body []byte) (map[string]interface{}, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func stringField(body []byte, field ...string) (string, error) {
	obj, err := decode(body)
	if err != nil {
		return "", err
	}
	s, found, err := unstructured.NestedString(obj, field...)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("no %s in response", strings.Join(field, "."))
	}
	return s, nil
}
