package runware

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TaskType tags both request directives and response results.
type TaskType string

const (
	TaskTypeAuthentication TaskType = "authentication"
	TaskTypeImageInference TaskType = "imageInference"
)

// Task is one directive in the ordered request batch.
type Task interface {
	TaskType() TaskType
}

// Request is the ordered batch sent in a single POST.
type Request []Task

// AuthenticationTask authenticates the batch; it must come first.
type AuthenticationTask struct {
	APIKey string `json:"apiKey"`
}

// TaskType implements Task.
func (AuthenticationTask) TaskType() TaskType { return TaskTypeAuthentication }

// MarshalJSON emits the taskType tag ahead of the fields.
func (t AuthenticationTask) MarshalJSON() ([]byte, error) {
	type fields AuthenticationTask
	return json.Marshal(struct {
		TaskType TaskType `json:"taskType"`
		fields
	}{TaskTypeAuthentication, fields(t)})
}

// ImageInferenceTask asks the provider to transform InputImage guided by
// PositivePrompt.
type ImageInferenceTask struct {
	TaskUUID       string  `json:"taskUUID"`
	PositivePrompt string  `json:"positivePrompt"`
	InputImage     string  `json:"inputImage"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Model          string  `json:"model"`
	NumberResults  int     `json:"numberResults"`
	OutputFormat   string  `json:"outputFormat"`
	CFGScale       float64 `json:"CFGScale"`
	Scheduler      string  `json:"scheduler"`
	Strength       float64 `json:"strength"`
	Steps          int     `json:"steps"`
}

// TaskType implements Task.
func (ImageInferenceTask) TaskType() TaskType { return TaskTypeImageInference }

// MarshalJSON emits the taskType tag ahead of the fields.
func (t ImageInferenceTask) MarshalJSON() ([]byte, error) {
	type fields ImageInferenceTask
	return json.Marshal(struct {
		TaskType TaskType `json:"taskType"`
		fields
	}{TaskTypeImageInference, fields(t)})
}

// Result is one entry of the response "data" array.
type Result interface {
	TaskType() TaskType
}

// AuthenticationResult acknowledges the authentication directive.
type AuthenticationResult struct {
	ConnectionSessionUUID string `json:"connectionSessionUUID"`
}

func (AuthenticationResult) TaskType() TaskType { return TaskTypeAuthentication }

// ImageInferenceResult carries the generated image location.
type ImageInferenceResult struct {
	TaskUUID  string  `json:"taskUUID"`
	ImageUUID string  `json:"imageUUID"`
	ImageURL  string  `json:"imageURL"`
	Cost      float64 `json:"cost,omitempty"`
}

func (ImageInferenceResult) TaskType() TaskType { return TaskTypeImageInference }

// UnknownResult preserves entries with a task type this client does not model.
type UnknownResult struct {
	Type TaskType
	Raw  json.RawMessage
}

func (r UnknownResult) TaskType() TaskType { return r.Type }

// Results decodes a heterogeneous "data" array into tagged variants.
type Results []Result

// UnmarshalJSON dispatches each entry on its taskType.
func (rs *Results) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Results, 0, len(raw))
	for i, entry := range raw {
		var tag struct {
			TaskType TaskType `json:"taskType"`
		}
		if err := json.Unmarshal(entry, &tag); err != nil {
			return fmt.Errorf("data[%d]: %w", i, err)
		}

		switch tag.TaskType {
		case TaskTypeAuthentication:
			var r AuthenticationResult
			if err := json.Unmarshal(entry, &r); err != nil {
				return fmt.Errorf("data[%d]: %w", i, err)
			}
			out = append(out, r)
		case TaskTypeImageInference:
			var r ImageInferenceResult
			if err := json.Unmarshal(entry, &r); err != nil {
				return fmt.Errorf("data[%d]: %w", i, err)
			}
			out = append(out, r)
		default:
			out = append(out, UnknownResult{Type: tag.TaskType, Raw: entry})
		}
	}

	*rs = out
	return nil
}

// ImageInference returns the first image-inference result, if any.
func (rs Results) ImageInference() (ImageInferenceResult, bool) {
	for _, r := range rs {
		if ii, ok := r.(ImageInferenceResult); ok {
			return ii, true
		}
	}
	return ImageInferenceResult{}, false
}

// ErrorEntry is one provider-reported error.
type ErrorEntry struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	TaskType TaskType `json:"taskType,omitempty"`
	TaskUUID string   `json:"taskUUID,omitempty"`
}

// Response is the decoded provider reply.
type Response struct {
	Data   Results      `json:"data"`
	Error  string       `json:"error,omitempty"`
	Errors []ErrorEntry `json:"errors,omitempty"`
}

// ErrorMessage returns the provider-reported error text, or "" when the
// response carries none.
func (r *Response) ErrorMessage() string {
	if r.Error != "" {
		return r.Error
	}
	if len(r.Errors) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		switch {
		case e.Code != "" && e.Message != "":
			msgs = append(msgs, e.Code+": "+e.Message)
		case e.Message != "":
			msgs = append(msgs, e.Message)
		default:
			msgs = append(msgs, e.Code)
		}
	}
	return strings.Join(msgs, "; ")
}

// ParseResponse decodes a provider response body.
func ParseResponse(body []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
