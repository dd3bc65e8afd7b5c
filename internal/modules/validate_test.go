package modules

import (
	"errors"
	"testing"

	"github.com/ogen-go/ogen/validate"
)

func TestValidateParams_RequiredFields(t *testing.T) {
	schema := InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"owner": {Type: "string", Description: "Repository owner"},
			"repo":  {Type: "string", Description: "Repository name"},
		},
		Required: []string{"owner", "repo"},
	}

	tests := []struct {
		name    string
		params  map[string]any
		wantErr bool
		errMsg  string
	}{
		{
			name:    "all required present",
			params:  map[string]any{"owner": "octocat", "repo": "hello-world"},
			wantErr: false,
		},
		{
			name:    "missing one required",
			params:  map[string]any{"owner": "octocat"},
			wantErr: true,
			errMsg:  "missing required parameter(s): repo",
		},
		{
			name:    "missing all required",
			params:  map[string]any{},
			wantErr: true,
			errMsg:  "missing required parameter(s): owner, repo",
		},
		{
			name:    "nil params",
			params:  nil,
			wantErr: true,
			errMsg:  "missing required parameter(s): owner, repo",
		},
		{
			name:    "empty string for required field",
			params:  map[string]any{"owner": "", "repo": "hello-world"},
			wantErr: true,
			errMsg:  "missing required parameter(s): owner",
		},
		{
			name:    "nil value for required field",
			params:  map[string]any{"owner": nil, "repo": "hello-world"},
			wantErr: true,
			errMsg:  "missing required parameter(s): owner",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateParams(schema, tt.params)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got nil")
				} else if err.Error() != tt.errMsg {
					t.Errorf("expected error %q, got %q", tt.errMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		})
	}
}

func TestValidateParams_TypeCheck(t *testing.T) {
	schema := InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"name":     {Type: "string"},
			"count":    {Type: "number"},
			"enabled":  {Type: "boolean"},
			"tags":     {Type: "array"},
			"metadata": {Type: "object"},
		},
	}

	tests := []struct {
		name    string
		params  map[string]any
		wantErr bool
		errMsg  string
	}{
		{
			name:    "all correct types",
			params:  map[string]any{"name": "test", "count": float64(5), "enabled": true, "tags": []interface{}{"a"}, "metadata": map[string]interface{}{"k": "v"}},
			wantErr: false,
		},
		{
			name:    "string where number expected",
			params:  map[string]any{"count": "five"},
			wantErr: true,
			errMsg:  `parameter "count": expected number, got string`,
		},
		{
			name:    "number where string expected",
			params:  map[string]any{"name": float64(42)},
			wantErr: true,
			errMsg:  `parameter "name": expected string, got float64`,
		},
		{
			name:    "string where boolean expected",
			params:  map[string]any{"enabled": "true"},
			wantErr: true,
			errMsg:  `parameter "enabled": expected boolean, got string`,
		},
		{
			name:    "string where array expected",
			params:  map[string]any{"tags": "not-array"},
			wantErr: true,
			errMsg:  `parameter "tags": expected array, got string`,
		},
		{
			name:    "string where object expected",
			params:  map[string]any{"metadata": "not-object"},
			wantErr: true,
			errMsg:  `parameter "metadata": expected object, got string`,
		},
		{
			name:    "extra params not in schema pass through",
			params:  map[string]any{"unknown_field": "whatever"},
			wantErr: false,
		},
		{
			name:    "nil value skips type check",
			params:  map[string]any{"name": nil},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateParams(schema, tt.params)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got nil")
				} else if err.Error() != tt.errMsg {
					t.Errorf("expected error %q, got %q", tt.errMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		})
	}
}

func TestValidateParams_NoRequiredNoProperties(t *testing.T) {
	schema := InputSchema{
		Type:       "object",
		Properties: map[string]Property{},
	}

	result, err := ValidateParams(schema, map[string]any{})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if result == nil {
		t.Errorf("expected non-nil result")
	}
}

func TestValidateParams_IntegerType(t *testing.T) {
	schema := InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"pullNumber": {Type: "integer"},
		},
	}

	tests := []struct {
		name    string
		value   any
		wantErr string
	}{
		{"whole float64", float64(3), ""},
		{"string", "three", `parameter "pullNumber": expected integer, got string`},
		{"fraction", float64(2.5), `parameter "pullNumber": expected integer, got 2.5`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateParams(schema, map[string]any{"pullNumber": tt.value})
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("expected error %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateParams_Defaults(t *testing.T) {
	schema := InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"owner":    {Type: "string", Default: "aws"},
			"hoursAgo": {Type: "number", Default: float64(24)},
			"date":     {Type: "string", Format: "date"},
		},
	}

	params := map[string]any{"owner": "octocat"}
	got, err := ValidateParams(schema, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["owner"] != "octocat" {
		t.Errorf("owner = %v, want caller value kept", got["owner"])
	}
	if got["hoursAgo"] != float64(24) {
		t.Errorf("hoursAgo = %v, want default 24", got["hoursAgo"])
	}
	if _, ok := got["date"]; ok {
		t.Errorf("date should stay absent, got %v", got["date"])
	}
	if _, ok := params["hoursAgo"]; ok {
		t.Error("caller's map was modified")
	}
}

func TestValidateParams_Constraints(t *testing.T) {
	schema := InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"hoursAgo":   {Type: "number", Minimum: Int64(1), Maximum: Int64(1000)},
			"pullNumber": {Type: "integer", Minimum: Int64(1)},
			"owner":      {Type: "string", MinLength: Int(1)},
			"date":       {Type: "string", Format: "date"},
		},
	}

	tests := []struct {
		name       string
		params     map[string]any
		wantFields []string
	}{
		{"all valid", map[string]any{"hoursAgo": float64(1), "pullNumber": float64(42), "owner": "aws", "date": "2025-06-08"}, nil},
		{"zero hours", map[string]any{"hoursAgo": float64(0)}, []string{"hoursAgo"}},
		{"hours at maximum", map[string]any{"hoursAgo": float64(1000)}, nil},
		{"hours above maximum", map[string]any{"hoursAgo": float64(1001)}, []string{"hoursAgo"}},
		{"hours beyond int64", map[string]any{"hoursAgo": 1e300}, []string{"hoursAgo"}},
		{"negative pull number", map[string]any{"pullNumber": float64(-3)}, []string{"pullNumber"}},
		{"empty optional owner", map[string]any{"owner": ""}, []string{"owner"}},
		{"bad date", map[string]any{"date": "06/08/2025"}, []string{"date"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateParams(schema, tt.params)
			if tt.wantFields == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			var verr *validate.Error
			if !errors.As(err, &verr) {
				t.Fatalf("expected *validate.Error, got %T (%v)", err, err)
			}
			if len(verr.Fields) != len(tt.wantFields) {
				t.Fatalf("got %d field errors, want %d: %v", len(verr.Fields), len(tt.wantFields), err)
			}
			for i, name := range tt.wantFields {
				if verr.Fields[i].Name != name {
					t.Errorf("field[%d] = %q, want %q", i, verr.Fields[i].Name, name)
				}
			}
		})
	}
}

func TestFindTool(t *testing.T) {
	tools := []Tool{
		{Name: "fetch-recent-merged-prs", ID: "github:fetch-recent-merged-prs"},
		{Name: "fetch-pr-details", ID: "github:fetch-pr-details"},
	}

	tool, found := findTool(tools, "fetch-pr-details")
	if !found {
		t.Fatal("expected to find fetch-pr-details")
	}
	if tool.ID != "github:fetch-pr-details" {
		t.Errorf("expected ID github:fetch-pr-details, got %s", tool.ID)
	}

	_, found = findTool(tools, "nonexistent")
	if found {
		t.Error("expected not to find nonexistent tool")
	}
}
