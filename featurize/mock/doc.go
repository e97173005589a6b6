// Package mock provides test doubles for featurize.Featurizer.
//
// MockFeaturizer works without images or models: by default Imread returns
// the reference itself as the payload and Featurize appends a deterministic
// embedding derived from it. Tests inject failures or delays through the
// function fields and assert on call counts.
package mock
