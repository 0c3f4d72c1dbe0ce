package engine

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"net/netip"
	"regexp"
	"strings"

	"github.com/cfnscope/cfnscope/pkg/errors"
	"github.com/cfnscope/cfnscope/pkg/lookup"
)

// fnTag enumerates the closed set of supported intrinsic functions. Adding
// a function means adding a tag here, an entry in fnTags and a case in
// apply; an unrecognized Fn:: key fails loudly instead of passing through.
type fnTag int

const (
	fnRef fnTag = iota
	fnGetAtt
	fnSub
	fnJoin
	fnSplit
	fnSelect
	fnIf
	fnCondition
	fnEquals
	fnAnd
	fnOr
	fnNot
	fnFindInMap
	fnImportValue
	fnBase64
	fnCidr
	fnGetAZs
	fnTransform
)

var fnTags = map[string]fnTag{
	"Ref":             fnRef,
	"Fn::GetAtt":      fnGetAtt,
	"Fn::Sub":         fnSub,
	"Fn::Join":        fnJoin,
	"Fn::Split":       fnSplit,
	"Fn::Select":      fnSelect,
	"Fn::If":          fnIf,
	"Condition":       fnCondition,
	"Fn::Equals":      fnEquals,
	"Fn::And":         fnAnd,
	"Fn::Or":          fnOr,
	"Fn::Not":         fnNot,
	"Fn::FindInMap":   fnFindInMap,
	"Fn::ImportValue": fnImportValue,
	"Fn::Base64":      fnBase64,
	"Fn::Cidr":        fnCidr,
	"Fn::GetAZs":      fnGetAZs,
	"Fn::Transform":   fnTransform,
}

// parseFunctionNode recognizes a canonical single-key function node. A
// "Condition" key only counts as the condition function when its value is
// a string; mapping-valued Condition keys (IAM policy statements) are plain
// data. An unknown Fn:: key is an error, not a silent pass-through.
func parseFunctionNode(m map[string]interface{}) (fnTag, interface{}, bool, error) {
	if len(m) != 1 {
		return 0, nil, false, nil
	}
	for key, value := range m {
		tag, ok := fnTags[key]
		if !ok {
			if strings.HasPrefix(key, "Fn::") {
				return 0, nil, false, fmt.Errorf("unsupported intrinsic function %q", key)
			}
			return 0, nil, false, nil
		}
		if tag == fnCondition {
			if _, isString := value.(string); !isString {
				return 0, nil, false, nil
			}
		}
		return tag, value, true, nil
	}
	return 0, nil, false, nil
}

// apply runs one intrinsic function. Arguments are evaluated eagerly
// before the handler body, except Fn::Sub's source string and the raw
// condition name, which the handlers consume directly.
func (ctx *evalContext) apply(tag fnTag, raw interface{}) (interface{}, error) {
	switch tag {
	case fnRef:
		name, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("Ref requires a literal name, got %T", raw)
		}
		return ctx.resolveRef(name)

	case fnGetAtt:
		return ctx.fnGetAtt(raw)

	case fnSub:
		return ctx.fnSub(raw)

	case fnCondition:
		name := raw.(string)
		return ctx.conds.value(name)

	case fnIf:
		return ctx.fnIf(raw)
	}

	args, err := ctx.eval(raw)
	if err != nil {
		return nil, err
	}

	switch tag {
	case fnJoin:
		return ctx.fnJoin(args)
	case fnSplit:
		return ctx.fnSplit(args)
	case fnSelect:
		return ctx.fnSelect(args)
	case fnEquals:
		list, err := argList(args, 2, "Fn::Equals")
		if err != nil {
			return nil, err
		}
		return equalValues(list[0], list[1]), nil
	case fnAnd:
		return boolFold(args, "Fn::And", func(acc, b bool) bool { return acc && b }, true)
	case fnOr:
		return boolFold(args, "Fn::Or", func(acc, b bool) bool { return acc || b }, false)
	case fnNot:
		list, err := argList(args, 1, "Fn::Not")
		if err != nil {
			return nil, err
		}
		b, ok := list[0].(bool)
		if !ok {
			return nil, fmt.Errorf("Fn::Not operand must be a condition, got %T", list[0])
		}
		return !b, nil
	case fnFindInMap:
		return ctx.fnFindInMap(args)
	case fnImportValue:
		return ctx.fnImportValue(args)
	case fnBase64:
		s, ok := scalarString(args)
		if !ok {
			return nil, fmt.Errorf("Fn::Base64 requires a string, got %T", args)
		}
		return base64.StdEncoding.EncodeToString([]byte(s)), nil
	case fnCidr:
		return fnCidrSubnets(args)
	case fnGetAZs:
		return ctx.fnGetAZs(args)
	case fnTransform:
		m, ok := args.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("Fn::Transform requires a mapping, got %T", args)
		}
		name, ok := m["Name"].(string)
		if !ok {
			return nil, fmt.Errorf("Fn::Transform requires a Name")
		}
		return name, nil
	}
	return nil, fmt.Errorf("unhandled intrinsic function tag %d", tag)
}

// resolveRef resolves a bare reference: pseudo-parameter, parameter or
// resource logical id, in that order.
func (ctx *evalContext) resolveRef(name string) (interface{}, error) {
	if strings.HasPrefix(name, "AWS::") {
		v, ok := ctx.pseudo.Resolve(name)
		if !ok {
			return nil, errors.Reference(fmt.Sprintf("unrecognized pseudo parameter %q", name))
		}
		return v, nil
	}

	if v, ok := ctx.params[name]; ok {
		return v, nil
	}

	if res, ok := ctx.tpl.Resource(name); ok {
		// A reference to a resource yields a synthetic placeholder, not a
		// simulated backend identifier. Conditionally excluded resources
		// still resolve here; see the design notes.
		if override, ok := res.RefOverride(); ok {
			return override, nil
		}
		return name, nil
	}

	return nil, errors.Reference(fmt.Sprintf("%q is not a parameter, pseudo parameter or resource", name))
}

func (ctx *evalContext) fnGetAtt(raw interface{}) (interface{}, error) {
	args, err := ctx.eval(raw)
	if err != nil {
		return nil, err
	}

	var logicalID, attr string
	switch v := args.(type) {
	case string:
		parts := strings.SplitN(v, ".", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("Fn::GetAtt %q must be Resource.Attribute", v)
		}
		logicalID, attr = parts[0], parts[1]
	case []interface{}:
		if len(v) != 2 {
			return nil, fmt.Errorf("Fn::GetAtt requires [logicalId, attributeName]")
		}
		var ok1, ok2 bool
		logicalID, ok1 = v[0].(string)
		attr, ok2 = v[1].(string)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("Fn::GetAtt logicalId and attributeName must be strings")
		}
	default:
		return nil, fmt.Errorf("Fn::GetAtt requires a list or string, got %T", args)
	}

	res, ok := ctx.tpl.Resource(logicalID)
	if !ok {
		return nil, errors.Reference(fmt.Sprintf("Fn::GetAtt resource %q not found in template", logicalID))
	}

	if override, ok := res.AttributeOverride(attr); ok {
		return override, nil
	}
	return logicalID + "." + attr, nil
}

// subToken matches ${Token} placeholders, skipping the ${!Literal} escape.
var subToken = regexp.MustCompile(`\$\{([^!}][^}]*)\}`)

func (ctx *evalContext) fnSub(raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case string:
		return ctx.subString(v, nil)
	case []interface{}:
		if len(v) != 2 {
			return nil, fmt.Errorf("Fn::Sub requires [sourceString, variableMap]")
		}
		source, ok := v[0].(string)
		if !ok {
			return nil, fmt.Errorf("Fn::Sub source must be a string, got %T", v[0])
		}
		rawVars, ok := v[1].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("Fn::Sub variables must be a mapping, got %T", v[1])
		}
		locals := make(map[string]interface{}, len(rawVars))
		for name, expr := range rawVars {
			value, err := ctx.eval(expr)
			if err != nil {
				return nil, err
			}
			locals[name] = value
		}
		return ctx.subString(source, locals)
	}
	return nil, fmt.Errorf("Fn::Sub requires a string or list, got %T", raw)
}

func (ctx *evalContext) subString(source string, locals map[string]interface{}) (string, error) {
	var subErr error
	replaced := subToken.ReplaceAllStringFunc(source, func(match string) string {
		token := match[2 : len(match)-1]

		resolve := func() (interface{}, error) {
			if value, ok := locals[token]; ok {
				return value, nil
			}
			if strings.Contains(token, ".") {
				parts := strings.SplitN(token, ".", 2)
				return ctx.fnGetAtt([]interface{}{parts[0], parts[1]})
			}
			return ctx.resolveRef(token)
		}

		value, err := resolve()
		if err != nil {
			if subErr == nil {
				subErr = err
			}
			return match
		}
		s, ok := scalarString(value)
		if !ok {
			if subErr == nil {
				subErr = fmt.Errorf("Fn::Sub variable %q resolves to a non-scalar value", token)
			}
			return match
		}
		return s
	})
	if subErr != nil {
		return "", subErr
	}
	return strings.ReplaceAll(replaced, "${!", "${"), nil
}

func (ctx *evalContext) fnJoin(args interface{}) (interface{}, error) {
	list, err := argList(args, 2, "Fn::Join")
	if err != nil {
		return nil, err
	}
	delimiter, ok := list[0].(string)
	if !ok {
		return nil, fmt.Errorf("Fn::Join delimiter must be a string, got %T", list[0])
	}
	items, ok := list[1].([]interface{})
	if !ok {
		return nil, fmt.Errorf("Fn::Join requires a list to join, got %T", list[1])
	}

	parts := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := scalarString(item)
		if !ok {
			return nil, fmt.Errorf("Fn::Join items must be scalars, got %T", item)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, delimiter), nil
}

func (ctx *evalContext) fnSplit(args interface{}) (interface{}, error) {
	list, err := argList(args, 2, "Fn::Split")
	if err != nil {
		return nil, err
	}
	delimiter, ok1 := list[0].(string)
	source, ok2 := list[1].(string)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("Fn::Split requires a string delimiter and a string to split")
	}
	parts := strings.Split(source, delimiter)
	out := make([]interface{}, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out, nil
}

func (ctx *evalContext) fnSelect(args interface{}) (interface{}, error) {
	list, err := argList(args, 2, "Fn::Select")
	if err != nil {
		return nil, err
	}
	index, err := intValue(list[0])
	if err != nil {
		return nil, fmt.Errorf("Fn::Select index: %w", err)
	}
	items, ok := list[1].([]interface{})
	if !ok {
		return nil, fmt.Errorf("Fn::Select requires a list to select from, got %T", list[1])
	}
	if index < 0 || index >= len(items) {
		return nil, errors.Reference(fmt.Sprintf("Fn::Select index %d out of range for list of length %d", index, len(items)))
	}
	return items[index], nil
}

func (ctx *evalContext) fnIf(raw interface{}) (interface{}, error) {
	list, ok := raw.([]interface{})
	if !ok || len(list) != 3 {
		return nil, fmt.Errorf("Fn::If requires [conditionName, valueIfTrue, valueIfFalse]")
	}
	name, ok := list[0].(string)
	if !ok {
		return nil, fmt.Errorf("Fn::If condition name must be a string, got %T", list[0])
	}

	value, err := ctx.conds.value(name)
	if err != nil {
		return nil, err
	}

	// Both branches are evaluated eagerly; selection happens after.
	trueValue, err := ctx.eval(list[1])
	if err != nil {
		return nil, err
	}
	falseValue, err := ctx.eval(list[2])
	if err != nil {
		return nil, err
	}

	if value {
		return trueValue, nil
	}
	return falseValue, nil
}

func (ctx *evalContext) fnFindInMap(args interface{}) (interface{}, error) {
	list, ok := args.([]interface{})
	if !ok || (len(list) != 3 && len(list) != 4) {
		return nil, fmt.Errorf("Fn::FindInMap requires [mapName, topLevelKey, secondLevelKey]")
	}

	var defaultValue interface{}
	hasDefault := false
	if len(list) == 4 {
		if !ctx.tpl.HasTransform("AWS::LanguageExtensions") {
			return nil, fmt.Errorf("Fn::FindInMap default values require the AWS::LanguageExtensions transform")
		}
		opts, ok := list[3].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("Fn::FindInMap fourth argument must be a mapping with DefaultValue")
		}
		defaultValue, hasDefault = opts["DefaultValue"]
	}

	mapName, ok1 := scalarString(list[0])
	topKey, ok2 := scalarString(list[1])
	secondKey, ok3 := scalarString(list[2])
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("Fn::FindInMap keys must be scalars")
	}

	miss := func(key string) (interface{}, error) {
		if hasDefault {
			return defaultValue, nil
		}
		return nil, errors.LookupKeyNotFound(mapName, key)
	}

	rawMap, ok := ctx.tpl.Mapping(mapName)
	if !ok {
		if hasDefault {
			return defaultValue, nil
		}
		return nil, errors.LookupKeyNotFound("Mappings", mapName)
	}
	topLevel, ok := rawMap.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("mapping %q is not a two-level map", mapName)
	}

	second, ok := topLevel[topKey].(map[string]interface{})
	if !ok {
		return miss(topKey)
	}
	value, ok := second[secondKey]
	if !ok {
		return miss(topKey + "." + secondKey)
	}
	return value, nil
}

func (ctx *evalContext) fnImportValue(args interface{}) (interface{}, error) {
	name, ok := scalarString(args)
	if !ok {
		return nil, fmt.Errorf("Fn::ImportValue export name must be a string, got %T", args)
	}
	return ctx.lookups.Resolve(lookup.TableImports, name)
}

func (ctx *evalContext) fnGetAZs(args interface{}) (interface{}, error) {
	region := ""
	if args != nil {
		if s, ok := scalarString(args); ok {
			region = s
		} else {
			return nil, fmt.Errorf("Fn::GetAZs region must be a string, got %T", args)
		}
	}
	if region == "" {
		region = ctx.pseudo.Region
	}

	// A caller-supplied azs table wins; otherwise zones are synthetic.
	if value, err := ctx.lookups.Resolve(lookup.TableAZs, region); err == nil {
		switch v := value.(type) {
		case []interface{}:
			return v, nil
		case string:
			return splitList(v), nil
		}
		return nil, fmt.Errorf("azs table entry for %q must be a list or comma string", region)
	}

	return []interface{}{region + "a", region + "b", region + "c"}, nil
}

// fnCidrSubnets implements Fn::Cidr: carve count subnets with hostBits host
// bits out of ipBlock.
func fnCidrSubnets(args interface{}) (interface{}, error) {
	list, ok := args.([]interface{})
	if !ok || len(list) != 3 {
		return nil, fmt.Errorf("Fn::Cidr requires [ipBlock, count, cidrBits]")
	}
	block, ok := scalarString(list[0])
	if !ok {
		return nil, fmt.Errorf("Fn::Cidr ipBlock must be a string")
	}
	count, err := intValue(list[1])
	if err != nil {
		return nil, fmt.Errorf("Fn::Cidr count: %w", err)
	}
	hostBits, err := intValue(list[2])
	if err != nil {
		return nil, fmt.Errorf("Fn::Cidr cidrBits: %w", err)
	}

	prefix, err := netip.ParsePrefix(block)
	if err != nil || !prefix.Addr().Is4() {
		return nil, fmt.Errorf("Fn::Cidr ipBlock %q is not a valid IPv4 CIDR", block)
	}
	if hostBits < 1 || hostBits > 31 {
		return nil, fmt.Errorf("Fn::Cidr cidrBits must be between 1 and 31")
	}

	newBits := 32 - hostBits
	if newBits < prefix.Bits() {
		return nil, fmt.Errorf("Fn::Cidr cannot carve /%d subnets out of %s", newBits, block)
	}
	if count < 1 || count > 1<<(newBits-prefix.Bits()) {
		return nil, fmt.Errorf("Fn::Cidr unable to convert %s into %d subnets of /%d", block, count, newBits)
	}

	base := binary.BigEndian.Uint32(prefix.Masked().Addr().AsSlice())
	step := uint32(1) << hostBits

	subnets := make([]interface{}, 0, count)
	for i := 0; i < count; i++ {
		addr := base + uint32(i)*step
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], addr)
		subnets = append(subnets, fmt.Sprintf("%s/%d", netip.AddrFrom4(b), newBits))
	}
	return subnets, nil
}

func argList(args interface{}, want int, fn string) ([]interface{}, error) {
	list, ok := args.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s requires a list of %d values, got %T", fn, want, args)
	}
	if len(list) != want {
		return nil, fmt.Errorf("%s requires exactly %d values, got %d", fn, want, len(list))
	}
	return list, nil
}

func boolFold(args interface{}, fn string, fold func(bool, bool) bool, start bool) (interface{}, error) {
	list, ok := args.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s requires a list of conditions, got %T", fn, args)
	}
	if len(list) < 2 || len(list) > 10 {
		return nil, fmt.Errorf("%s requires between 2 and 10 conditions, got %d", fn, len(list))
	}
	acc := start
	for _, item := range list {
		b, ok := item.(bool)
		if !ok {
			return nil, fmt.Errorf("%s operands must be conditions, got %T", fn, item)
		}
		acc = fold(acc, b)
	}
	return acc, nil
}
