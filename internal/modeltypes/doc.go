// Package modeltypes classifies 3D model files by extension.
//
// Supported formats: glTF binary (.glb), glTF JSON (.gltf), Wavefront
// (.obj), stereolithography (.stl) and Autodesk FBX (.fbx). Matching is
// case-insensitive, so MODEL.GLB and model.glb are both recognized.
package modeltypes
