// Package value implements the tagged value algebra the converter evaluates
// patterns over.
//
// A Value is one of Null, String, Number, Bool, Date, Node, Array, Error or
// Function. Array is the only multi-valued variant; every operator either
// maps over arrays element-wise (see Lift) or, for concatenation, takes the
// Cartesian product (see Append).
//
// There are two independent failure channels and they must not be mixed:
//
//   - ErrNoResult (returned as a Go error) means "nothing here"; it is
//     swallowed at optional-property boundaries.
//   - Error values are data: they are reported with the row number, and a
//     fatal Error marks the run failed.
package value
