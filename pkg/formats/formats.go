// Package formats reads and writes QvPen stroke exports.
//
// Two payload shapes are accepted: a bare array of stroke records, and an
// object that wraps the array in exportedData alongside the file name,
// export time and optional global width. Writing always produces the object
// shape.
package formats
