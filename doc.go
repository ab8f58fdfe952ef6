// Package scnnexp runs spherical CNN classification experiments on noisy
// HEALPix maps and accumulates their test errors.
//
// An experiment is keyed by (sigma, order, sigma_noise): sigma selects the
// simulated training set, order the size of the sphere patches fed to the
// network and sigma_noise the noise level the model is evaluated at. The
// training set is augmented with noise ramping from 0 up to sigma_noise.
//
// # Command line
//
//	scnnexp 3 2 0.1              # one experiment
//	scnnexp                      # the default grid
//	scnnexp -grid sweep.hcl      # a grid file
//
// Each experiment prints its validation and test error and appends
// (order, sigma_noise, test_error) to results/scnn/scnn_results_list_sigma{sigma}.npz.
//
// # Packages
//
//   - experiment: hyperparameter tables per order and the experiment runner
//   - scnn: model configuration, model contract and the readout backend
//   - dataprep: data archives, preprocessing and train/validation splits
//   - dataset: mini-batch iterators with noise augmentation
//   - results: per-sigma result archives
//   - grid: default and HCL work lists
//   - metrics: classification error metrics
//   - preprocessing: standardization
//   - core/model: shared model interfaces and gob persistence
//   - core/parallel: parallel batch reductions
//   - pkg/errors, pkg/log: error types and structured logging
package scnnexp
