// Package cq crops source code by query. A query names a piece of code
// structurally ("the function foo", "the describe block 'parser' and its
// it 'works'", "lines 3 to EOF") and cq returns the exact byte range and
// text it denotes, resolved against a tree-sitter parse of the source.
//
// # Usage
//
// One-shot cropping parses the source and resolves the query:
//
//	res, err := cq.Crop(ctx, src, ".foo")
//	if err != nil { ... }
//	fmt.Println(res.Code, res.Start, res.End)
//
// Several comma-separated queries are cropped together; the result spans all
// of them and its code is their concatenation.
//
// # Query Language
//
//   - .name or name: the declaration bound to name.
//   - 'text': the call, object property or literal built around a string.
//   - .outer .inner: inner searched within outer (backtracking over outer
//     candidates until inner matches).
//   - A:B: from the start of A to the end of B, with B searched after A.
//   - [n], [EOF]: line n, or the empty range at the end of the source.
//   - op(Q, args...) or Q.op(args...): apply a range operator.
//
// Built-in operators are upto, context(before, after), window(start, end),
// comments, decorators, after(goalpost) and choose(index).
//
// # Cropper
//
// A [Cropper] is the long-lived form. It caches parsed sources in memory,
// optionally caches crop results in SQLite ([WithCache]) and loads
// user-defined operators written in Risor ([WithOperatorsDir]):
//
//	c, err := cq.NewCropper(cq.WithCache("cq.db"), cq.WithOperatorsDir("ops"))
//	if err != nil { ... }
//	defer c.Close()
//
//	res, err := c.CropFile(ctx, "src/app.ts", "context(.App, 1, 1)")
//
// [Cropper.CropFiles] crops many files on a worker pool.
//
// # Engines
//
// The built-in engines are javascript (the default), typescript, tsx and go.
// Select one with [WithEngineName] or supply any [Engine] with [WithEngine].
package cq
