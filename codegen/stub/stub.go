// Package stub is a reference codegen.Backend: it renders each
// StructDescriptor and EnumDescriptor into a target-agnostic textual
// stub (struct/enum shape, field ids and types; options are not
// rendered) meant for inspection and golden-file testing rather than any particular
// target language (spec §4.6 "a reference stub backend exercising every
// descriptor kind").
package stub

import (
	"bytes"
	"fmt"

	"github.com/codaschema/coda/codegen"
	"github.com/codaschema/coda/schema"
)

func init() {
	codegen.Register(Backend{})
}

// Backend implements codegen.Backend.
type Backend struct{}

func (Backend) Name() string { return "stub" }

func (Backend) Generate(req codegen.Request) ([]codegen.OutputFile, error) {
	var out []codegen.OutputFile
	for _, fd := range req.Targets {
		content, err := renderFile(fd)
		if err != nil {
			return nil, err
		}
		out = append(out, codegen.OutputFile{
			Name:    fd.Name + ".stub.txt",
			Content: content,
		})
	}
	return out, nil
}

func renderFile(fd *schema.FileDescriptor) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "// package %s\n", fd.Package)
	for _, sd := range fd.Structs {
		renderStruct(&buf, sd, 0)
	}
	for _, ed := range fd.Enums {
		renderEnum(&buf, ed, 0)
	}
	for _, ef := range fd.Extensions {
		fmt.Fprintf(&buf, "extend %s { %s: %s = %d; }\n", ef.Extends.FullName(), ef.Field.Name, typeName(ef.Field.Type), ef.Field.ID)
	}
	return buf.Bytes(), nil
}

func indentStr(depth int) string {
	s := ""
	for i := 0; i < depth; i++ {
		s += "  "
	}
	return s
}

func renderStruct(buf *bytes.Buffer, sd *schema.StructDescriptor, depth int) {
	ind := indentStr(depth)
	fmt.Fprintf(buf, "%sstruct %s", ind, sd.Name)
	if sd.TypeID != nil {
		if sd.BaseType != nil {
			fmt.Fprintf(buf, " (%s) = %d", sd.BaseType.Name, *sd.TypeID)
		} else {
			fmt.Fprintf(buf, " = %d", *sd.TypeID)
		}
	}
	fmt.Fprintf(buf, " {\n")
	if sd.ExtensionRange != nil {
		fmt.Fprintf(buf, "%s  extensions %d to %d;\n", ind, sd.ExtensionRange.Min, sd.ExtensionRange.Max)
	}
	for _, fd := range sd.Fields {
		fmt.Fprintf(buf, "%s  %s: %s = %d;\n", ind, fd.Name, typeName(fd.Type), fd.ID)
	}
	for _, md := range sd.Methods {
		fmt.Fprintf(buf, "%s  %s(...) = %d;\n", ind, md.Name, md.Index)
	}
	for _, nested := range sd.NestedStructs {
		renderStruct(buf, nested, depth+1)
	}
	for _, nested := range sd.NestedEnums {
		renderEnum(buf, nested, depth+1)
	}
	fmt.Fprintf(buf, "%s}\n", ind)
}

func renderEnum(buf *bytes.Buffer, ed *schema.EnumDescriptor, depth int) {
	ind := indentStr(depth)
	fmt.Fprintf(buf, "%senum %s {\n", ind, ed.Name)
	for _, v := range ed.Values {
		fmt.Fprintf(buf, "%s  %s = %d;\n", ind, v.Name, v.Value)
	}
	fmt.Fprintf(buf, "%s}\n", ind)
}

func typeName(t schema.Type) string {
	switch t.Kind() {
	case schema.KindStruct:
		return t.Struct().FullName()
	case schema.KindEnum:
		return t.Enum().FullName()
	case schema.KindModified:
		prefix := ""
		if t.IsConst() {
			prefix += "const "
		}
		if t.IsShared() {
			prefix += "shared "
		}
		return prefix + typeName(t.Elem())
	case schema.KindList:
		return "list[" + typeName(t.Elem()) + "]"
	case schema.KindSet:
		return "set[" + typeName(t.Elem()) + "]"
	case schema.KindMap:
		return "map[" + typeName(t.Key()) + "," + typeName(t.Val()) + "]"
	default:
		return t.Kind().String()
	}
}
