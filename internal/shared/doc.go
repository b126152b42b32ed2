// Package shared holds code used across packages that belongs to no single
// layer. Its testutil subpackage provides the dataset fixture, workbook
// writers and a buffered slog handler for asserting on log output:
//
//	func TestSomething(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    svc := services.NewDatasetService(loader, logger)
//	    ...
//	    assert.True(t, logs.ContainsMessage("dataset load failed"))
//	}
package shared
