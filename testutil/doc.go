// Package testutil starts and stops fake components for the duration of
// a test.
//
//	func TestClient(t *testing.T) {
//	    api := apitest.NewServer()
//	    testutil.T(t).Setup(api)
//	    t.Run("case", func(t *testing.T) {
//	        testutil.T(t).Reset(api)
//	    })
//	}
//
// Subpackage apitest provides a fake REST API to run clients against.
package testutil
