package patch

import "github.com/hashicorp/hcl/v2"

// paramsBlock holds a node's params body; attributes stay opaque until
// evaluated, since each node type reads its own keys.
type paramsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// nodeBlock is a `node "<type>" "<name>"` block.
type nodeBlock struct {
	Type        string       `hcl:"node_type,label"`
	Name        string       `hcl:"instance_name,label"`
	Params      *paramsBlock `hcl:"params,block"`
	LowPriority bool         `hcl:"low_priority,optional"`
	Strict      bool         `hcl:"strict,optional"`
}

// wireBlock connects an output port to an input port.
type wireBlock struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}

// fileRoot decodes the top level of one patch file.
type fileRoot struct {
	Nodes   []*nodeBlock `hcl:"node,block"`
	Wires   []*wireBlock `hcl:"wire,block"`
	Program *string      `hcl:"program,optional"`
	Remain  hcl.Body     `hcl:",remain"`
}
