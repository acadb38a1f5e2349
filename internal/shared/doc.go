// Package shared holds code used across vidgate packages that belongs to no
// single layer.
//
// # Test Utilities
//
// The testutil subpackage provides:
//
//	- License record fixtures anchored at a fixed instant (FixedNow)
//	- Fixed and mutable clocks for time-dependent license logic
//	- A buffered slog handler with log assertions
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    logger, handler := testutil.NewTestLogger(t)
//	    authority, _ := license.NewAuthority(license.Options{
//	        Store:  store.NewMemory(testutil.UnactivatedLicense("ABC-1", 30)),
//	        Issuer: license.NewUnsignedIssuer(24 * time.Hour),
//	        Clock:  testutil.Clock(),
//	        Logger: logger,
//	    })
//	    ...
//	    testutil.AssertNotLogged(t, handler, "ABC-1")
//	}
//
// This package should only contain test helpers and generic code with no
// license logic of its own.
package shared
