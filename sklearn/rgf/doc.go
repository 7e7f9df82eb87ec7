/*
Package rgf implements regularized greedy forest boosting.

A Booster grows one regression tree per output channel each round. Only
trees with at least one split are accepted; they are renewed by the
objective, shrunk by the learning rate, and added to the training and
validation score caches in a single step. The first accepted tree of a
channel also carries the cold-start bias. Channels the objective marks as
not trainable receive their constant default output once.

Every RefitPeriod rounds a fully corrective sweep re-estimates the leaf
outputs of all accepted trees with their split structure held fixed, so the
greedy choices of early rounds are revisited as the forest grows.

Basic usage:

	params := rgf.NewTrainingParams()
	params.Objective = "regression"
	params.NumIterations = 200

	train, _ := rgf.NewDataset(X, y)
	booster, err := rgf.Train(ctx, params, train, nil)
	if err != nil {
		return err
	}
	pred, err := booster.Predict(XTest, 0)

Lower level control is available through NewBooster and TrainOneIter,
which also accepts caller supplied gradients and hessians.
*/
package rgf
