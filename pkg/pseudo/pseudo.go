// Package pseudo supplies the built-in environment-like values available to
// template expressions without being declared as parameters.
package pseudo

import (
	"fmt"

	"github.com/google/uuid"
)

// NoValueType is the marker for "omit this key". A property or list element
// that evaluates to NoValue is dropped from the rendered output instead of
// being stored.
type NoValueType struct{}

// NoValue is the no-value sentinel.
var NoValue = NoValueType{}

// IsNoValue reports whether v is the no-value sentinel.
func IsNoValue(v interface{}) bool {
	_, ok := v.(NoValueType)
	return ok
}

// Values holds the pseudo-parameter set for one evaluation. Values is
// immutable: the With* methods return derived copies, so two engines can
// never observe each other's overrides.
type Values struct {
	AccountID        string
	Region           string
	Partition        string
	URLSuffix        string
	StackName        string
	StackID          string
	NotificationARNs []string
}

// Defaults returns the default pseudo-parameter set. The stack id is a
// synthetic ARN carrying a random uuid so distinct engines get distinct ids.
func Defaults() Values {
	name := "cfnscope-test"
	return Values{
		AccountID:        "555555555555",
		Region:           "us-east-1",
		Partition:        "aws",
		URLSuffix:        "amazonaws.com",
		StackName:        name,
		StackID:          fmt.Sprintf("arn:aws:cloudformation:us-east-1:555555555555:stack/%s/%s", name, uuid.NewString()),
		NotificationARNs: []string{},
	}
}

// WithRegion returns a copy with the region replaced.
func (v Values) WithRegion(region string) Values {
	v.Region = region
	return v
}

// WithAccountID returns a copy with the account id replaced.
func (v Values) WithAccountID(id string) Values {
	v.AccountID = id
	return v
}

// WithPartition returns a copy with the partition replaced.
func (v Values) WithPartition(partition string) Values {
	v.Partition = partition
	return v
}

// WithStackName returns a copy with the stack name replaced.
func (v Values) WithStackName(name string) Values {
	v.StackName = name
	return v
}

// WithStackID returns a copy with the stack id replaced.
func (v Values) WithStackID(id string) Values {
	v.StackID = id
	return v
}

// WithNotificationARNs returns a copy with the notification list replaced.
func (v Values) WithNotificationARNs(arns []string) Values {
	copied := make([]string, len(arns))
	copy(copied, arns)
	v.NotificationARNs = copied
	return v
}

// Resolve returns the value for an "AWS::" pseudo-parameter name. The second
// return is false for names that are not recognized.
func (v Values) Resolve(name string) (interface{}, bool) {
	switch name {
	case "AWS::AccountId":
		return v.AccountID, true
	case "AWS::Region":
		return v.Region, true
	case "AWS::Partition":
		return v.Partition, true
	case "AWS::URLSuffix":
		return v.URLSuffix, true
	case "AWS::StackName":
		return v.StackName, true
	case "AWS::StackId":
		return v.StackID, true
	case "AWS::NotificationARNs":
		arns := make([]interface{}, len(v.NotificationARNs))
		for i, a := range v.NotificationARNs {
			arns[i] = a
		}
		return arns, true
	case "AWS::NoValue":
		return NoValue, true
	}
	return nil, false
}
