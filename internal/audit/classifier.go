package audit

import (
	"fmt"
	"strings"

	"github.com/ems-platform/ems-backend/internal/db/models"
)

// Input carries everything the classifier may inspect for one observed call.
type Input struct {
	// Method is the HTTP verb of the underlying call.
	Method string
	// Path is the request path (e.g. /api/tasks/42).
	Path string
	// PathID is the value of the :id route parameter, empty when absent.
	PathID string
	// RequestBody is the decoded JSON request body, nil when absent.
	RequestBody map[string]interface{}
	// Response is the decoded JSON response body: a map for object responses,
	// a []interface{} for list responses, nil when the body was not JSON.
	Response interface{}
}

// Classification is the normalized audit taxonomy derived from an Input.
type Classification struct {
	Action       string
	ResourceType string
	ResourceID   *string
	ResourceName *string
	Changes      map[string]interface{}
}

// Classify maps an observed call onto the closed action/resource taxonomy.
// It is a pure function of its input: identical inputs always yield identical
// classifications, and unrecognized methods or paths fall back to
// ACCESS/SYSTEM rather than failing.
func Classify(in Input) Classification {
	c := Classification{
		Action:       deriveAction(in.Method, in.Path),
		ResourceType: deriveResourceType(in.Path),
	}

	info := resourceInfo{}
	for _, extract := range extractionStrategies {
		extract(in, &info)
	}
	c.ResourceID = info.id
	c.ResourceName = info.name

	// Submitted fields are recorded only for mutating calls, and only after
	// sanitization.
	if c.Action == models.ActionUpdate {
		c.Changes = Sanitize(in.RequestBody)
	}

	return c
}

// deriveAction maps method and path onto an action. Login/logout markers in
// the path win over the method mapping.
func deriveAction(method, path string) string {
	if strings.Contains(path, "/login") {
		return models.ActionLogin
	}
	if strings.Contains(path, "/logout") {
		return models.ActionLogout
	}

	switch strings.ToUpper(method) {
	case "GET":
		return models.ActionRead
	case "POST":
		return models.ActionCreate
	case "PUT", "PATCH":
		return models.ActionUpdate
	case "DELETE":
		return models.ActionDelete
	default:
		return models.ActionAccess
	}
}

// deriveResourceType maps a path onto a resource type by substring match.
func deriveResourceType(path string) string {
	switch {
	case strings.Contains(path, "/user"):
		return models.ResourceUser
	case strings.Contains(path, "/task"):
		return models.ResourceTask
	case strings.Contains(path, "/department"):
		return models.ResourceDepartment
	case strings.Contains(path, "/auth"):
		return models.ResourceAuth
	default:
		return models.ResourceSystem
	}
}

// resourceInfo accumulates the id/name extracted by the strategies below.
type resourceInfo struct {
	id   *string
	name *string
}

// extraction inspects the input and may fill or override fields of info.
type extraction func(in Input, info *resourceInfo)

// extractionStrategies is evaluated in order; later strategies may override
// earlier ones. The order is a contract: path parameter, then response body
// id fields, then a wrapped single entity, then list summaries.
var extractionStrategies = []extraction{
	extractPathParam,
	extractResponseID,
	extractNestedEntity,
	extractListSummary,
}

// extractPathParam uses the :id route parameter when present.
func extractPathParam(in Input, info *resourceInfo) {
	if in.PathID != "" {
		id := in.PathID
		info.id = &id
	}
}

// extractResponseID reads id-like and name-like fields off an object response.
func extractResponseID(in Input, info *resourceInfo) {
	body, ok := in.Response.(map[string]interface{})
	if !ok {
		return
	}

	if id := stringField(body, "_id", "id"); id != nil {
		info.id = id
	}
	if name := stringField(body, "name", "title", "email"); name != nil {
		info.name = name
	}
}

// extractNestedEntity handles responses that wrap the affected entity, e.g.
// {"message": "...", "task": {...}}. A wrapped entity overrides whatever the
// earlier strategies found.
func extractNestedEntity(in Input, info *resourceInfo) {
	body, ok := in.Response.(map[string]interface{})
	if !ok {
		return
	}

	for _, key := range []string{"task", "user", "department"} {
		entity, ok := body[key].(map[string]interface{})
		if !ok {
			continue
		}
		if id := stringField(entity, "_id", "id"); id != nil {
			info.id = id
		}
		if name := stringField(entity, "name", "title", "email"); name != nil {
			info.name = name
		}
		return
	}
}

// extractListSummary synthesizes a human-readable count for list-shaped
// responses instead of leaving the name empty.
func extractListSummary(in Input, info *resourceInfo) {
	if body, ok := in.Response.(map[string]interface{}); ok {
		if tasks, ok := body["tasks"].([]interface{}); ok {
			name := fmt.Sprintf("%d tasks", len(tasks))
			info.name = &name
		}
		return
	}

	if list, ok := in.Response.([]interface{}); ok && len(list) > 0 {
		name := fmt.Sprintf("%d records", len(list))
		info.name = &name
	}
}

// stringField returns the first of the named keys holding a non-empty string
// or a number, rendered as a string.
func stringField(m map[string]interface{}, keys ...string) *string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if v != "" {
				s := v
				return &s
			}
		case float64:
			s := strings.TrimSuffix(fmt.Sprintf("%v", v), ".0")
			return &s
		}
	}
	return nil
}
