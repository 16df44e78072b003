package loader

import "github.com/zeusync/typedrpc/internal/core/schema/registry"

// Builtins lists the definitions every schema starts from: the primitive
// leaf types plus the chain aliases most documents assume.
func Builtins() []registry.Entry {
	return []registry.Entry{
		{Name: "u8", Def: registry.Primitive(registry.U8)},
		{Name: "u16", Def: registry.Primitive(registry.U16)},
		{Name: "u32", Def: registry.Primitive(registry.U32)},
		{Name: "u64", Def: registry.Primitive(registry.U64)},
		{Name: "u128", Def: registry.Primitive(registry.U128)},
		{Name: "i8", Def: registry.Primitive(registry.I8)},
		{Name: "i16", Def: registry.Primitive(registry.I16)},
		{Name: "i32", Def: registry.Primitive(registry.I32)},
		{Name: "i64", Def: registry.Primitive(registry.I64)},
		{Name: "i128", Def: registry.Primitive(registry.I128)},
		{Name: "bool", Def: registry.Primitive(registry.Bool)},
		{Name: "Text", Def: registry.Primitive(registry.Text)},
		{Name: "String", Def: registry.Alias("Text")},
		{Name: "str", Def: registry.Alias("Text")},
		{Name: "Bytes", Def: registry.Sequence("u8")},
		{Name: "()", Def: registry.Tuple()},
		{Name: "Null", Def: registry.Alias("()")},

		{Name: "H160", Def: registry.FixedArray("u8", 20)},
		{Name: "H256", Def: registry.FixedArray("u8", 32)},
		{Name: "H512", Def: registry.FixedArray("u8", 64)},
		{Name: "Hash", Def: registry.Alias("H256")},
		{Name: "AccountId", Def: registry.FixedArray("u8", 32)},
		{Name: "Signature", Def: registry.Alias("H512")},
		{Name: "Balance", Def: registry.Alias("u128")},
		{Name: "Moment", Def: registry.Alias("u64")},
		{Name: "BlockNumber", Def: registry.Alias("u32")},
		{Name: "Index", Def: registry.Alias("u32")},
		{Name: "Call", Def: registry.Alias("Bytes")},
	}
}

// RegisterBuiltins adds Builtins to r in one batch.
func RegisterBuiltins(r *registry.Registry) error {
	return r.RegisterBatch(Builtins())
}
