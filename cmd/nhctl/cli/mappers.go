package cli

import (
	"reflect"

	"github.com/alecthomas/kong"

	"github.com/frobware/go-nexthop"
)

// familyMapper creates a Kong mapper for FamilyFlag.
func familyMapper() kong.MapperFunc {
	return func(ctx *kong.DecodeContext, target reflect.Value) error {
		var s string
		if err := ctx.Scan.PopValueInto("family", &s); err != nil {
			return err
		}
		f, err := nexthop.ParseFamily(s)
		if err != nil {
			return err
		}
		target.Set(reflect.ValueOf(FamilyFlag{Value: f, Set: true}))
		return nil
	}
}
